// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chafer Contributors

// Package errutil provides helpers for working with coded runtime errors.
package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// CodeOf extracts the error code from a coded error, empty for plain
// errors.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := oopsErr.Code().(string); ok && code != "" {
			return code
		}
	}
	return ""
}

// LogError logs an error with structured context when it is a coded
// error: message, code, context and stacktrace. Plain errors log the
// error string only.
func LogError(logger *slog.Logger, msg string, err error) {
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs := []any{
			"error", oopsErr.Error(),
		}
		if code := oopsErr.Code(); code != "" {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
		logger.Error(msg, attrs...)
	} else {
		logger.Error(msg, "error", err)
	}
}
