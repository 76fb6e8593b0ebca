// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chafer Contributors

package config_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chafer-dev/chafer/internal/config"
)

func TestGenerateSchema(t *testing.T) {
	data, err := config.GenerateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))

	assert.Equal(t, config.SchemaID, schema["$id"])
	assert.Equal(t, "Chafer Runtime Configuration", schema["title"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"registry", "events", "log", "metrics"} {
		assert.Contains(t, props, key)
	}
}

func TestValidateSchema_Valid(t *testing.T) {
	t.Cleanup(config.ResetSchemaCache)

	err := config.ValidateSchema([]byte(`
registry:
  name: Plugin
  path: plugins
events:
  allow-unregistered: true
log:
  format: json
`))
	assert.NoError(t, err)
}

func TestValidateSchema_WrongType(t *testing.T) {
	t.Cleanup(config.ResetSchemaCache)

	err := config.ValidateSchema([]byte(`
registry:
  name: Plugin
  path: 42
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema validation failed")
}

func TestValidateSchema_Empty(t *testing.T) {
	assert.Error(t, config.ValidateSchema(nil))
}

func TestValidateSchema_BadYAML(t *testing.T) {
	err := config.ValidateSchema([]byte("registry: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid YAML")
}
