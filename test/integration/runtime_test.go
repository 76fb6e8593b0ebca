// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chafer Contributors

//go:build integration

package integration

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/chafer-dev/chafer/event"
	"github.com/chafer-dev/chafer/internal/observability"
	"github.com/chafer-dev/chafer/plugin"
)

// writeFile drops a plugin source file into dir.
func writeFile(dir, name, content string) {
	ExpectWithOffset(1, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600)).To(Succeed())
}

var _ = Describe("Plugin runtime", func() {
	var (
		ctx       context.Context
		cancel    context.CancelFunc
		pluginDir string
		events    *event.Registry
		state     *plugin.Data
		registry  *plugin.Registry
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
		pluginDir = GinkgoT().TempDir()
		events = event.NewRegistry(false, "on_start", "on_message", "on_stop")
		state = plugin.NewData("state", map[string]any{"greeting": "hello"})

		var err error
		registry, err = plugin.NewRegistry("Plugin",
			plugin.WithLoadPath(pluginDir),
			plugin.WithEventRegistry(events),
			plugin.WithSharedData(state))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		registry.Close()
		cancel()
	})

	Describe("full lifecycle", func() {
		BeforeEach(func() {
			writeFile(pluginDir, "recorder.lua", `
Plugin = {
	human_name = "Recorder",
	version = "1.0.0",
	listeners = {
		{
			event = "on_message",
			handler = function(self, text)
				self.count = (self.count or 0) + 1
				shared.state.last = text
				shared.state.count = self.count
			end,
		},
		{
			event = "on_stop",
			handler = function(self)
				shared.state.stopped = true
			end,
		},
	},
}
`)
			writeFile(pluginDir, "announcer.lua", `
Plugin = {
	human_name = "Announcer",
	dependencies = { "recorder@>=1.0.0" },
	listeners = {
		{
			event = "on_start",
			handler = function(self)
				chafer.dispatch("on_message", shared.state.greeting)
			end,
		},
	},
}
`)
		})

		It("loads plugins, dispatches events and shares state", func() {
			Expect(registry.LoadAll(ctx)).To(Succeed())

			order := registry.Instances()
			Expect(order).To(HaveLen(2))
			// announcer sorts first but depends on recorder, which
			// therefore registers before it.
			Expect(order[0].Descriptor().Name).To(Equal("recorder"))
			Expect(order[1].Descriptor().Name).To(Equal("announcer"))

			// on_start makes the announcer re-dispatch the shared
			// greeting as on_message.
			Expect(events.Dispatch(ctx, "on_start")).To(Succeed())
			last, _ := state.Get("last")
			Expect(last).To(Equal("hello"))

			Expect(events.Dispatch(ctx, "on_message", "direct")).To(Succeed())
			last, _ = state.Get("last")
			Expect(last).To(Equal("direct"))
			count, _ := state.Get("count")
			Expect(count).To(Equal(float64(2)))

			Expect(events.Dispatch(ctx, "on_stop")).To(Succeed())
			stopped, _ := state.Get("stopped")
			Expect(stopped).To(Equal(true))
		})
	})

	Describe("failure isolation", func() {
		It("keeps earlier plugins when a later unit fails to load", func() {
			writeFile(pluginDir, "good.lua", `Plugin = {}`)
			writeFile(pluginDir, "zz_bad.lua", `Plugin = "not a table"`)

			Expect(registry.LoadAll(ctx)).NotTo(Succeed())

			_, ok := registry.Instance("good")
			Expect(ok).To(BeTrue())
			_, ok = registry.Instance("zz_bad")
			Expect(ok).To(BeFalse())
		})

		It("propagates listener failures to the dispatcher", func() {
			writeFile(pluginDir, "angry.lua", `
Plugin = {
	listeners = {
		{ event = "on_message", handler = function(self) error("nope") end },
	},
}
`)
			Expect(registry.LoadAll(ctx)).To(Succeed())

			err := events.Dispatch(ctx, "on_message", "hi")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("nope"))
		})
	})

	Describe("observability", func() {
		It("exposes load and dispatch counters over HTTP", func() {
			srv := observability.NewServer("127.0.0.1:0", func() bool { return true })
			_, err := srv.Start()
			Expect(err).NotTo(HaveOccurred())
			defer func() {
				stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer stopCancel()
				Expect(srv.Stop(stopCtx)).To(Succeed())
			}()

			obsRegistry, err := plugin.NewRegistry("Plugin",
				plugin.WithLoadPath(pluginDir),
				plugin.WithEventRegistry(events),
				plugin.WithRecorder(srv.Metrics()))
			Expect(err).NotTo(HaveOccurred())
			defer obsRegistry.Close()
			events.SetRecorder(srv.Metrics())

			writeFile(pluginDir, "noop.lua", `Plugin = {}`)
			Expect(obsRegistry.LoadAll(ctx)).To(Succeed())
			Expect(events.Dispatch(ctx, "on_start")).To(Succeed())

			resp, err := http.Get(fmt.Sprintf("http://%s/metrics", srv.Addr()))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())

			Expect(string(body)).To(ContainSubstring(`chafer_plugin_loads_total{registry="Plugin",status="ok"} 1`))
			Expect(string(body)).To(ContainSubstring(`chafer_event_dispatches_total{event="on_start"} 1`))
		})
	})
})
