package app

import (
	"testing"
	"time"

	"questnotify/internal/config"
)

func TestMapServerConfigDefaults(t *testing.T) {
	t.Parallel()
	s, err := mapServerConfig(&config.Config{})
	if err != nil {
		t.Fatalf("mapServerConfig: %v", err)
	}
	if s.addr != ":8090" {
		t.Fatalf("addr = %q, want :8090", s.addr)
	}
	if s.shutdownTimeout != 10*time.Second {
		t.Fatalf("shutdown_timeout = %v, want 10s", s.shutdownTimeout)
	}
}

func TestMapServerConfigBadDuration(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Server.ReadTimeout = "yesterday"
	if _, err := mapServerConfig(cfg); err == nil {
		t.Fatal("expected duration error")
	}
}

func TestMapRealtimeConfig(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Realtime.SendTimeout = "2s"
	cfg.Realtime.RatePerSec = 25
	rt, err := mapRealtimeConfig(cfg)
	if err != nil {
		t.Fatalf("mapRealtimeConfig: %v", err)
	}
	if rt.SendTimeout != 2*time.Second || rt.RatePerSec != 25 {
		t.Fatalf("unexpected mapping: %+v", rt)
	}

	cfg.Realtime.RatePerSec = -1
	if _, err := mapRealtimeConfig(cfg); err == nil {
		t.Fatal("negative rate must be rejected")
	}
}

func TestMapAnnounceConfigValidation(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		mutate func(*config.Config)
		err    bool
	}{
		{name: "empty is fine", mutate: func(*config.Config) {}},
		{
			name:   "valid crons",
			mutate: func(c *config.Config) { c.Announce.DailyChallengeCron = "0 8 * * *" },
		},
		{
			name:   "bad daily cron",
			mutate: func(c *config.Config) { c.Announce.DailyChallengeCron = "often" },
			err:    true,
		},
		{
			name: "event missing cron",
			mutate: func(c *config.Config) {
				c.Announce.Events = []config.EventAnnouncement{{Title: "X"}}
			},
			err: true,
		},
		{
			name: "event missing title",
			mutate: func(c *config.Config) {
				c.Announce.Events = []config.EventAnnouncement{{Cron: "0 12 * * *"}}
			},
			err: true,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := &config.Config{}
			tc.mutate(cfg)
			_, err := mapAnnounceConfig(cfg)
			if tc.err && err == nil {
				t.Fatal("expected error")
			}
			if !tc.err && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateConfigTimezone(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Announce.Timezone = "Mars/Olympus"
	if err := validateConfig(cfg); err == nil {
		t.Fatal("expected timezone error")
	}
}
