package realtime

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"questnotify/internal/eventbus"
	"questnotify/internal/membership"
	"questnotify/internal/notification"
	logx "questnotify/pkg/logx"
)

// Audience names a group of recipients. Exactly one of School or Clan is
// set for group sends; Everyone covers all connected users.
type Audience struct {
	School int64
	Clan   int64

	// Exclude drops one user from the resolved set. Clan chat uses it so
	// the author does not get notified about their own message.
	Exclude int64
}

func SchoolAudience(id int64) Audience { return Audience{School: id} }
func ClanAudience(id int64) Audience   { return Audience{Clan: id} }

func (a Audience) String() string {
	switch {
	case a.School != 0:
		return fmt.Sprintf("school:%d", a.School)
	case a.Clan != 0:
		return fmt.Sprintf("clan:%d", a.Clan)
	default:
		return "none"
	}
}

// Config tunes fan-out behavior. Zero values pick safe defaults.
type Config struct {
	// SendTimeout bounds one push to one session. A stalled session must
	// not stall the rest of the fan-out.
	SendTimeout time.Duration

	// RatePerSec paces SendToAll so a full broadcast cannot monopolize
	// the process.
	RatePerSec int
}

const (
	defaultSendTimeout = 5 * time.Second
	defaultRatePerSec  = 100
)

// DeliveryEvent is the bus payload for notify.* and audience.* events.
type DeliveryEvent struct {
	Kind      string `json:"kind"`
	UserID    int64  `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Audience  string `json:"audience,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Dispatcher fans one message out to every live session of a target.
// It is stateless over the Registry and safe for concurrent use.
type Dispatcher struct {
	reg     *Registry
	members membership.Resolver
	log     logx.Logger
	bus     eventbus.Bus

	sendTimeout time.Duration
	limiter     *rate.Limiter
}

func NewDispatcher(cfg Config, reg *Registry, members membership.Resolver, log logx.Logger, bus eventbus.Bus) *Dispatcher {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = defaultRatePerSec
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		reg:         reg,
		members:     members,
		log:         log,
		bus:         bus,
		sendTimeout: cfg.SendTimeout,
		limiter:     rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// SendToUser pushes the message to every open session of the user.
// It returns the number of sessions actually reached. The only error is
// a message that cannot be encoded; per-session push failures evict the
// broken session and are swallowed.
func (d *Dispatcher) SendToUser(ctx context.Context, userID int64, msg notification.Message) (int, error) {
	frame, err := msg.Encode()
	if err != nil {
		return 0, err
	}
	return d.pushFrame(ctx, userID, msg.Kind, frame), nil
}

// SendToAudience resolves the audience to user IDs and fans out per user.
// Resolution failures (unknown school/clan, query error) abort the whole
// send and are returned; nothing has been pushed in that case.
func (d *Dispatcher) SendToAudience(ctx context.Context, aud Audience, msg notification.Message) (int, error) {
	frame, err := msg.Encode()
	if err != nil {
		return 0, err
	}

	users, err := d.resolve(ctx, aud)
	if err != nil {
		d.log.Warn("audience resolution failed",
			logx.String("audience", aud.String()),
			logx.String("kind", msg.Kind.String()),
			logx.Err(err))
		d.publish(eventbus.TypeAudienceFailed, DeliveryEvent{
			Kind:     msg.Kind.String(),
			Audience: aud.String(),
			Error:    err.Error(),
		})
		return 0, err
	}

	delivered := 0
	for _, userID := range users {
		if userID == aud.Exclude && aud.Exclude != 0 {
			continue
		}
		delivered += d.pushFrame(ctx, userID, msg.Kind, frame)
	}
	return delivered, nil
}

// SendToAll pushes the message to every user with at least one open
// session, paced by the broadcast limiter. Used for system-wide
// announcements.
func (d *Dispatcher) SendToAll(ctx context.Context, msg notification.Message) (int, error) {
	frame, err := msg.Encode()
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, userID := range d.reg.Users() {
		if err := d.limiter.Wait(ctx); err != nil {
			// Context gone; the broadcast is abandoned mid-way, which is
			// fine for a best-effort channel.
			return delivered, nil
		}
		delivered += d.pushFrame(ctx, userID, msg.Kind, frame)
	}
	return delivered, nil
}

// resolve maps an audience to user IDs via the membership collaborator.
// No registry lock is held across this call.
func (d *Dispatcher) resolve(ctx context.Context, aud Audience) ([]int64, error) {
	switch {
	case aud.School != 0:
		return d.members.SchoolMembers(ctx, aud.School)
	case aud.Clan != 0:
		return d.members.ClanMembers(ctx, aud.Clan)
	default:
		return nil, fmt.Errorf("audience has no target")
	}
}

// pushFrame attempts delivery to each of the user's sessions
// independently. A push failure means the session is dead: it is
// unregistered, closed and counted as dropped, and the loop moves on to
// the user's next session.
func (d *Dispatcher) pushFrame(ctx context.Context, userID int64, kind notification.Kind, frame []byte) int {
	delivered := 0
	for _, s := range d.reg.SessionsFor(userID) {
		sctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		err := s.Send(sctx, frame)
		cancel()
		if err != nil {
			d.log.Warn("session push failed; evicting session",
				logx.Int64("user_id", userID),
				logx.String("session_id", s.ID()),
				logx.String("kind", kind.String()),
				logx.Err(err))
			d.reg.Unregister(userID, s)
			s.Close("push failed")
			d.publish(eventbus.TypeNotifyDropped, DeliveryEvent{
				Kind:      kind.String(),
				UserID:    userID,
				SessionID: s.ID(),
				Error:     err.Error(),
			})
			continue
		}
		delivered++
		d.publish(eventbus.TypeNotifySent, DeliveryEvent{
			Kind:      kind.String(),
			UserID:    userID,
			SessionID: s.ID(),
		})
	}
	return delivered
}

func (d *Dispatcher) publish(typ string, data DeliveryEvent) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: data})
}
