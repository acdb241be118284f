// Package sweeper re-checks checkout sessions whose confirmation never reached the store.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"entrypay/entity"
	"entrypay/lib/clock"
	"entrypay/lib/sl"
)

type Config struct {
	Schedule  string // cron spec, e.g. "@every 10m"
	Grace     time.Duration
	BatchSize int
}

type Database interface {
	EntriesAwaitingPayment(ctx context.Context, before time.Time, limit int) ([]*entity.Entry, error)
	SaveWebhookEvent(ctx context.Context, event *entity.WebhookEvent) error
}

type SessionSource interface {
	Session(ctx context.Context, id string) (*entity.CheckoutSession, error)
}

type Settler interface {
	Settle(ctx context.Context, entryId string) (bool, error)
}

type Sweeper struct {
	c        *cron.Cron
	config   Config
	db       Database
	sessions SessionSource
	settler  Settler
	now      clock.Clock
	running  sync.Mutex
	log      *slog.Logger
}

func New(cfg Config, db Database, sessions SessionSource, settler Settler, log *slog.Logger) (*Sweeper, error) {
	s := &Sweeper{
		c:        cron.New(),
		config:   cfg,
		db:       db,
		sessions: sessions,
		settler:  settler,
		now:      clock.System,
		log:      log.With(sl.Module("sweeper")),
	}
	_, err := s.c.AddFunc(cfg.Schedule, func() {
		s.Run(context.Background())
	})
	if err != nil {
		return nil, fmt.Errorf("sweeper schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

func (s *Sweeper) SetClock(now clock.Clock) {
	s.now = now
}

func (s *Sweeper) Start() {
	s.log.With(
		slog.String("schedule", s.config.Schedule),
		slog.Duration("grace", s.config.Grace),
	).Info("starting sweeper")
	s.c.Start()
}

func (s *Sweeper) Stop() {
	<-s.c.Stop().Done()
}

// Run performs one pass and returns the number of entries it settled.
// Overlapping passes are skipped.
func (s *Sweeper) Run(ctx context.Context) int {
	if !s.running.TryLock() {
		s.log.Debug("previous pass still running")
		return 0
	}
	defer s.running.Unlock()

	entries, err := s.db.EntriesAwaitingPayment(ctx, s.now().Add(-s.config.Grace), s.config.BatchSize)
	if err != nil {
		s.log.With(sl.Err(err)).Error("list entries awaiting payment")
		return 0
	}

	recovered := 0
	for _, entry := range entries {
		if s.check(ctx, entry) {
			recovered++
		}
	}
	if len(entries) > 0 {
		s.log.With(
			slog.Int("checked", len(entries)),
			slog.Int("recovered", recovered),
		).Info("sweep completed")
	}
	return recovered
}

func (s *Sweeper) check(ctx context.Context, entry *entity.Entry) bool {
	log := s.log.With(
		sl.Entry(entry.Id),
		slog.String("session_id", entry.PaymentReference),
	)

	session, err := s.sessions.Session(ctx, entry.PaymentReference)
	if err != nil {
		log.With(sl.Err(err)).Warn("fetch session")
		return false
	}
	if session.PaymentStatus != entity.SessionPaymentPaid {
		return false
	}
	// the session must belong to this entry; references are overwritten on re-checkout
	if session.Metadata[entity.MetaEntryId] != entry.Id {
		log.With(slog.String("metadata_entry_id", session.Metadata[entity.MetaEntryId])).Warn("session metadata mismatch")
		return false
	}

	settled, err := s.settler.Settle(ctx, entry.Id)
	if err != nil {
		log.With(sl.Err(err)).Error("settle entry")
		return false
	}
	if settled {
		log.Info("missed payment confirmation recovered")
		err = s.db.SaveWebhookEvent(ctx, &entity.WebhookEvent{
			EventId:    "sweep:" + session.Id,
			Type:       "sweep.session_paid",
			EntryId:    entry.Id,
			SessionId:  session.Id,
			Outcome:    entity.OutcomeRecovered,
			ReceivedAt: s.now(),
		})
		if err != nil {
			log.With(sl.Err(err)).Warn("save sweep event")
		}
	}
	return settled
}
