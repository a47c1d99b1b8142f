package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"questnotify/internal/config"
	"questnotify/internal/membership"
	"questnotify/internal/realtime"
	"questnotify/internal/services/announce"
)

// serverSettings is ServerConfig with durations parsed.
type serverSettings struct {
	addr            string
	readTimeout     time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
}

func mapServerConfig(cfg *config.Config) (serverSettings, error) {
	s := serverSettings{addr: strings.TrimSpace(cfg.Server.Addr)}
	if s.addr == "" {
		s.addr = ":8090"
	}

	var err error
	if s.readTimeout, err = config.ParseDurationField("server.read_timeout", cfg.Server.ReadTimeout); err != nil {
		return serverSettings{}, err
	}
	if s.idleTimeout, err = config.ParseDurationField("server.idle_timeout", cfg.Server.IdleTimeout); err != nil {
		return serverSettings{}, err
	}
	if s.shutdownTimeout, err = config.ParseDurationOrDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout, 10*time.Second); err != nil {
		return serverSettings{}, err
	}
	return s, nil
}

func mapStorageConfig(cfg *config.Config) (membership.Config, error) {
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return membership.Config{}, err
	}
	return membership.Config{
		Driver:      strings.TrimSpace(cfg.Storage.Driver),
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, nil
}

func mapRealtimeConfig(cfg *config.Config) (realtime.Config, error) {
	sendTimeout, err := config.ParseDurationField("realtime.send_timeout", cfg.Realtime.SendTimeout)
	if err != nil {
		return realtime.Config{}, err
	}
	if cfg.Realtime.RatePerSec < 0 {
		return realtime.Config{}, fmt.Errorf("realtime.rate_per_sec must be >= 0")
	}
	return realtime.Config{
		SendTimeout: sendTimeout,
		RatePerSec:  cfg.Realtime.RatePerSec,
	}, nil
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func mapAnnounceConfig(cfg *config.Config) (announce.Config, error) {
	sweep, err := config.ParseDurationField("announce.powerup_sweep_every", cfg.Announce.PowerupSweepEvery)
	if err != nil {
		return announce.Config{}, err
	}
	if spec := strings.TrimSpace(cfg.Announce.DailyChallengeCron); spec != "" {
		if _, err := cronParser.Parse(spec); err != nil {
			return announce.Config{}, fmt.Errorf("announce.daily_challenge_cron: invalid %q: %w", spec, err)
		}
	}

	out := announce.Config{
		Timezone:           strings.TrimSpace(cfg.Announce.Timezone),
		DailyChallengeCron: strings.TrimSpace(cfg.Announce.DailyChallengeCron),
		PowerupSweepEvery:  sweep,
	}
	for i, ev := range cfg.Announce.Events {
		spec := strings.TrimSpace(ev.Cron)
		if spec == "" {
			return announce.Config{}, fmt.Errorf("announce.events[%d].cron is required", i)
		}
		if _, err := cronParser.Parse(spec); err != nil {
			return announce.Config{}, fmt.Errorf("announce.events[%d].cron: invalid %q: %w", i, spec, err)
		}
		if strings.TrimSpace(ev.Title) == "" {
			return announce.Config{}, fmt.Errorf("announce.events[%d].title is required", i)
		}
		out.Events = append(out.Events, announce.Event{Cron: spec, Title: ev.Title, Body: ev.Body})
	}
	return out, nil
}
