package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"entrypay/entity"
	"entrypay/internal/database"
	"entrypay/internal/reconciler"
	"entrypay/internal/stripeclient"
	"entrypay/lib/clock"
)

var now = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

type fakeSessions struct {
	sessions map[string]*entity.CheckoutSession
	calls    int
}

func (f *fakeSessions) Session(_ context.Context, id string) (*entity.CheckoutSession, error) {
	f.calls++
	s, ok := f.sessions[id]
	if !ok {
		return nil, errors.New("no such checkout session")
	}
	return s, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func awaiting(id, reference string, checkoutAt time.Time) *entity.Entry {
	return &entity.Entry{
		Id:               id,
		CategoryId:       "c-1",
		CreatedBy:        "player-" + id,
		Status:           entity.StatusPending,
		PaymentStatus:    entity.PaymentUnpaid,
		PaymentReference: reference,
		CheckoutAt:       &checkoutAt,
	}
}

func newSweeper(t *testing.T, db *database.Memory, sessions SessionSource) *Sweeper {
	t.Helper()
	log := testLogger()
	rec := reconciler.New(db, stripeclient.NewVerifier("whsec_test", log), log)
	rec.SetClock(clock.Fixed(now))
	s, err := New(Config{Schedule: "@every 10m", Grace: 15 * time.Minute, BatchSize: 10}, db, sessions, rec, log)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.SetClock(clock.Fixed(now))
	return s
}

func TestSweeper_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a paid session with a lost webhook When swept Then entry is settled", func(t *testing.T) {
		// Given
		db := database.NewMemory()
		db.PutEntry(awaiting("e-1", "cs_1", now.Add(-time.Hour)))
		sessions := &fakeSessions{sessions: map[string]*entity.CheckoutSession{
			"cs_1": {Id: "cs_1", PaymentStatus: "paid", Metadata: map[string]string{entity.MetaEntryId: "e-1"}},
		}}
		s := newSweeper(t, db, sessions)

		// When
		recovered := s.Run(ctx)

		// Then
		if recovered != 1 {
			t.Errorf("expected 1 recovered, got %d", recovered)
		}
		entry, _ := db.EntryByID(ctx, "e-1")
		if entry.PaymentStatus != entity.PaymentPaid || entry.Status != entity.StatusAccepted {
			t.Errorf("expected accepted/paid, got %s/%s", entry.Status, entry.PaymentStatus)
		}
		if evt := db.WebhookEvent("sweep:cs_1"); evt == nil || evt.Outcome != entity.OutcomeRecovered {
			t.Errorf("expected recovered audit record, got %+v", evt)
		}
	})

	t.Run("Given a recent checkout When swept Then it is left to the webhook", func(t *testing.T) {
		db := database.NewMemory()
		db.PutEntry(awaiting("e-1", "cs_1", now.Add(-time.Minute)))
		sessions := &fakeSessions{}
		s := newSweeper(t, db, sessions)

		recovered := s.Run(ctx)

		if recovered != 0 || sessions.calls != 0 {
			t.Errorf("expected no checks, got %d recovered and %d calls", recovered, sessions.calls)
		}
	})

	t.Run("Given unpaid or foreign sessions When swept Then nothing changes", func(t *testing.T) {
		// Given
		db := database.NewMemory()
		db.PutEntry(awaiting("e-1", "cs_open", now.Add(-time.Hour)))
		db.PutEntry(awaiting("e-2", "cs_foreign", now.Add(-time.Hour)))
		db.PutEntry(awaiting("e-3", "cs_gone", now.Add(-time.Hour)))
		sessions := &fakeSessions{sessions: map[string]*entity.CheckoutSession{
			"cs_open":    {Id: "cs_open", PaymentStatus: "unpaid", Metadata: map[string]string{entity.MetaEntryId: "e-1"}},
			"cs_foreign": {Id: "cs_foreign", PaymentStatus: "paid", Metadata: map[string]string{entity.MetaEntryId: "e-9"}},
		}}
		s := newSweeper(t, db, sessions)

		// When
		recovered := s.Run(ctx)

		// Then
		if recovered != 0 {
			t.Errorf("expected 0 recovered, got %d", recovered)
		}
		if sessions.calls != 3 {
			t.Errorf("expected 3 session lookups, got %d", sessions.calls)
		}
		if db.Writes() != 0 {
			t.Errorf("expected no writes, got %d", db.Writes())
		}
	})

	t.Run("Given the store is down When swept Then pass ends quietly", func(t *testing.T) {
		db := database.NewMemory()
		db.Fail(errors.New("connection refused"))
		s := newSweeper(t, db, &fakeSessions{})

		if recovered := s.Run(ctx); recovered != 0 {
			t.Errorf("expected 0 recovered, got %d", recovered)
		}
	})
}

func TestNew_InvalidSchedule(t *testing.T) {
	db := database.NewMemory()
	_, err := New(Config{Schedule: "not a schedule"}, db, &fakeSessions{}, nil, testLogger())
	if err == nil {
		t.Error("expected schedule error")
	}
}
