package config

type Config struct {
	Server   ServerConfig   `json:"server"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Realtime RealtimeConfig `json:"realtime"`
	Announce AnnounceConfig `json:"announce"`
}

// ServerConfig controls the HTTP listener carrying the WebSocket channel
// and the producer API.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type ServerConfig struct {
	Addr string `json:"addr"` // default ":8090"

	ReadTimeout     string `json:"read_timeout,omitempty"`
	WriteTimeout    string `json:"write_timeout,omitempty"` // 0 disables; long-lived sockets need it off
	IdleTimeout     string `json:"idle_timeout,omitempty"`
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig points at the gamification database used for membership
// lookups.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./schoolquest.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// RealtimeConfig tunes fan-out behavior.
type RealtimeConfig struct {
	// SendTimeout bounds one push to one session ("5s" default). A stale
	// session must not stall a school-wide fan-out.
	SendTimeout string `json:"send_timeout,omitempty"`

	// RatePerSec paces broadcast-to-all deliveries (default 100).
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// AnnounceConfig controls the scheduled system producers.
//
// Cron specs use the standard 5-field form; timezone is an IANA name
// (e.g. "America/Sao_Paulo").
type AnnounceConfig struct {
	Enabled  bool   `json:"enabled"`
	Timezone string `json:"timezone,omitempty"`

	// DailyChallengeCron fires the daily challenge announcement
	// (e.g. "0 8 * * *").
	DailyChallengeCron string `json:"daily_challenge_cron,omitempty"`

	// PowerupSweepEvery is the interval between expiry sweeps
	// (Go duration string, default "1m").
	PowerupSweepEvery string `json:"powerup_sweep_every,omitempty"`

	// Events are one-off scheduled event announcements.
	Events []EventAnnouncement `json:"events,omitempty"`
}

type EventAnnouncement struct {
	Cron  string `json:"cron"`
	Title string `json:"title"`
	Body  string `json:"body"`
}
