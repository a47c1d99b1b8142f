package membership

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSchoolNotFound = errors.New("school not found")
	ErrClanNotFound   = errors.New("clan not found")
)

// Resolver answers "who belongs to this audience right now".
//
// The dispatcher treats results as a point-in-time snapshot; it never
// holds registry locks across these calls. Backed by the platform's CRUD
// database, so consistency is owned by the store, not by callers.
type Resolver interface {
	// SchoolMembers returns the user IDs of the school's students.
	// Staff accounts are excluded: school-wide fan-outs target players.
	SchoolMembers(ctx context.Context, schoolID int64) ([]int64, error)

	// ClanMembers returns the user IDs of every member of the clan.
	ClanMembers(ctx context.Context, clanID int64) ([]int64, error)
}

// Powerup is one purchased power-up with a deadline. The announce sweep
// uses these to emit powerup_expired notifications exactly once.
type Powerup struct {
	ID        int64
	UserID    int64
	Kind      string
	ExpiresAt time.Time
}

// Store is the persistence API this service needs from the gamification
// database. Everything else (missions, shops, mural, ...) belongs to the
// CRUD backend and is out of scope here.
type Store interface {
	Resolver

	// ExpiredPowerups lists powerups past their deadline that have not
	// been announced yet.
	ExpiredPowerups(ctx context.Context, now time.Time) ([]Powerup, error)

	// MarkPowerupNotified records that the expiry notification for the
	// given powerup was attempted, so the sweep never repeats it.
	MarkPowerupNotified(ctx context.Context, id int64) error

	Close() error
}

// Config configures the membership store.
//
// Driver values:
//   - "sqlite": the gamification platform's SQLite database file
//   - "memory": in-process fixture store (dev and tests)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}
