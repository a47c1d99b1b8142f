// Package announce runs the scheduled system producers: the daily
// challenge broadcast, configured event announcements and the power-up
// expiry sweep.
package announce

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"questnotify/internal/membership"
	"questnotify/internal/notification"
	logx "questnotify/pkg/logx"
)

// Notifier is the slice of the dispatcher the producers need.
type Notifier interface {
	SendToUser(ctx context.Context, userID int64, msg notification.Message) (int, error)
	SendToAll(ctx context.Context, msg notification.Message) (int, error)
}

type Event struct {
	Cron  string
	Title string
	Body  string
}

type Config struct {
	Timezone string

	// DailyChallengeCron fires the daily challenge broadcast. Empty
	// disables it.
	DailyChallengeCron string

	// PowerupSweepEvery is the interval between expiry sweeps.
	PowerupSweepEvery time.Duration

	Events []Event
}

const defaultSweepEvery = time.Minute

type Service struct {
	cfg      Config
	notifier Notifier
	store    membership.Store
	log      logx.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func New(cfg Config, notifier Notifier, store membership.Store, log logx.Logger) *Service {
	if cfg.PowerupSweepEvery <= 0 {
		cfg.PowerupSweepEvery = defaultSweepEvery
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, notifier: notifier, store: store, log: log}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	loc := time.Local
	if s.cfg.Timezone != "" {
		l, err := time.LoadLocation(s.cfg.Timezone)
		if err != nil {
			return fmt.Errorf("announce: timezone %q: %w", s.cfg.Timezone, err)
		}
		loc = l
	}

	runCtx, cancel := context.WithCancel(context.Background())

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithLocation(loc))

	if s.cfg.DailyChallengeCron != "" {
		if _, err := c.AddFunc(s.cfg.DailyChallengeCron, func() { s.announceDailyChallenge(runCtx) }); err != nil {
			cancel()
			return fmt.Errorf("announce: daily challenge cron %q: %w", s.cfg.DailyChallengeCron, err)
		}
	}
	for _, ev := range s.cfg.Events {
		ev := ev
		if _, err := c.AddFunc(ev.Cron, func() { s.announceEvent(runCtx, ev) }); err != nil {
			cancel()
			return fmt.Errorf("announce: event cron %q: %w", ev.Cron, err)
		}
	}

	c.Start()

	done := make(chan struct{})
	go s.sweepLoop(runCtx, done)

	s.cron = c
	s.cancel = cancel
	s.done = done
	s.started = true
	s.log.Info("announce service started",
		logx.String("timezone", loc.String()),
		logx.String("daily_challenge", s.cfg.DailyChallengeCron),
		logx.Int("events", len(s.cfg.Events)),
		logx.Duration("sweep_every", s.cfg.PowerupSweepEvery))
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.cancel()
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.started = false
	s.log.Info("announce service stopped")
	return nil
}

func (s *Service) announceDailyChallenge(ctx context.Context) {
	msg := notification.Message{
		Kind:  notification.KindDailyChallenge,
		Title: "Desafio diário",
		Body:  "Um novo desafio está disponível. Complete-o antes da meia-noite!",
	}
	n, err := s.notifier.SendToAll(ctx, msg)
	if err != nil {
		s.log.Error("daily challenge broadcast failed", logx.Err(err))
		return
	}
	s.log.Info("daily challenge announced", logx.Int("delivered", n))
}

func (s *Service) announceEvent(ctx context.Context, ev Event) {
	msg := notification.Message{
		Kind:  notification.KindEventStarted,
		Title: ev.Title,
		Body:  ev.Body,
	}
	n, err := s.notifier.SendToAll(ctx, msg)
	if err != nil {
		s.log.Error("event broadcast failed", logx.String("title", ev.Title), logx.Err(err))
		return
	}
	s.log.Info("event announced", logx.String("title", ev.Title), logx.Int("delivered", n))
}

func (s *Service) sweepLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.PowerupSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweepPowerups(ctx, now)
		}
	}
}

// sweepPowerups notifies owners of power-ups that expired since the last
// sweep and marks them so a power-up is announced at most once. An
// offline owner still gets the power-up marked; expiry is not news worth
// queueing.
func (s *Service) sweepPowerups(ctx context.Context, now time.Time) {
	expired, err := s.store.ExpiredPowerups(ctx, now)
	if err != nil {
		s.log.Error("powerup sweep query failed", logx.Err(err))
		return
	}
	for _, p := range expired {
		msg := notification.Message{
			Kind:  notification.KindPowerupExpired,
			Title: "Power-up expirado",
			Body:  fmt.Sprintf("Seu power-up %q expirou.", p.Kind),
			Data:  map[string]any{"powerup_id": p.ID, "powerup_kind": p.Kind},
		}
		if _, err := s.notifier.SendToUser(ctx, p.UserID, msg); err != nil {
			s.log.Error("powerup notification failed",
				logx.Int64("powerup_id", p.ID),
				logx.Int64("user_id", p.UserID),
				logx.Err(err))
			continue
		}
		if err := s.store.MarkPowerupNotified(ctx, p.ID); err != nil {
			s.log.Error("powerup mark failed", logx.Int64("powerup_id", p.ID), logx.Err(err))
		}
	}
	if len(expired) > 0 {
		s.log.Info("powerup sweep done", logx.Int("expired", len(expired)))
	}
}
