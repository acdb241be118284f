// Package reconciler applies processor payment confirmations to entries.
package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v76"

	"entrypay/entity"
	"entrypay/lib/clock"
	"entrypay/lib/sl"
)

const DefaultTolerance = 5 * time.Minute

type Database interface {
	UpdateEntry(ctx context.Context, id string, cond entity.EntryCondition, upd entity.EntryUpdate) (bool, error)
	SaveWebhookEvent(ctx context.Context, event *entity.WebhookEvent) error
}

type SignatureVerifier interface {
	Configured() bool
	VerifySignature(payload []byte, header string, tolerance time.Duration) bool
}

type Notifier interface {
	SendMessage(msg string)
}

type Reconciler struct {
	db        Database
	verifier  SignatureVerifier
	notifier  Notifier
	tolerance time.Duration
	now       clock.Clock
	log       *slog.Logger
}

func New(db Database, verifier SignatureVerifier, log *slog.Logger) *Reconciler {
	return &Reconciler{
		db:        db,
		verifier:  verifier,
		tolerance: DefaultTolerance,
		now:       clock.System,
		log:       log.With(sl.Module("reconciler")),
	}
}

func (r *Reconciler) SetNotifier(n Notifier) {
	r.notifier = n
}

func (r *Reconciler) SetTolerance(d time.Duration) {
	if d > 0 {
		r.tolerance = d
	}
}

func (r *Reconciler) SetClock(now clock.Clock) {
	r.now = now
}

// HandleNotification processes one webhook delivery. It returns an error only
// when the delivery cannot be verified or parsed; every other outcome,
// including storage failures, is acknowledged so the processor does not
// redeliver events nothing can act on.
func (r *Reconciler) HandleNotification(ctx context.Context, payload []byte, signature string) error {
	if !r.verifier.Configured() {
		r.log.Error("webhook secret is not configured")
		return entity.ErrNotConfigured
	}
	if !r.verifier.VerifySignature(payload, signature, r.tolerance) {
		return entity.ErrInvalidSignature
	}

	var evt stripe.Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrMalformedEvent, err)
	}

	log := r.log.With(
		slog.String("event_id", evt.ID),
		slog.Any("type", evt.Type),
	)
	record := &entity.WebhookEvent{
		EventId:    evt.ID,
		Type:       string(evt.Type),
		ReceivedAt: r.now(),
	}
	defer r.audit(ctx, record)

	if evt.Type != stripe.EventTypeCheckoutSessionCompleted {
		log.Debug("ignored event")
		record.Outcome = entity.OutcomeIgnored
		return nil
	}

	var entryId string
	if evt.Data != nil {
		record.SessionId = evt.GetObjectValue("id")
		entryId = evt.GetObjectValue("metadata", entity.MetaEntryId)
	}
	record.EntryId = entryId
	if entryId == "" {
		log.With(slog.String("session_id", record.SessionId)).Warn("no entry_id in session metadata")
		record.Outcome = entity.OutcomeNoEntry
		return nil
	}

	settled, err := r.Settle(ctx, entryId)
	switch {
	case err != nil:
		log.With(sl.Entry(entryId), sl.Err(err)).Error("settle entry")
		record.Outcome = entity.OutcomeFailed
		record.Error = err.Error()
	case settled:
		record.Outcome = entity.OutcomeSettled
	default:
		record.Outcome = entity.OutcomeNoop
	}
	return nil
}

// Settle marks the entry paid and accepts it. Both writes are conditional, so
// repeating Settle for the same entry changes nothing and is not an error; an
// entry that was refunded is never moved back to paid. settled is true only
// for the call that performed the payment transition.
func (r *Reconciler) Settle(ctx context.Context, entryId string) (bool, error) {
	log := r.log.With(sl.Entry(entryId))

	paidAt := r.now()
	settled, err := r.db.UpdateEntry(ctx, entryId,
		entity.EntryCondition{PaymentStatus: []entity.PaymentStatus{entity.PaymentUnpaid, entity.PaymentWaived}},
		entity.EntryUpdate{PaymentStatus: entity.PaymentPaid, PaidAt: &paidAt},
	)
	if err != nil {
		return false, fmt.Errorf("%w: mark paid: %v", entity.ErrStorageUnavailable, err)
	}

	accepted, err := r.db.UpdateEntry(ctx, entryId,
		entity.EntryCondition{
			Status:        []entity.EntryStatus{entity.StatusPending},
			PaymentStatus: []entity.PaymentStatus{entity.PaymentPaid},
		},
		entity.EntryUpdate{Status: entity.StatusAccepted},
	)
	if err != nil {
		return settled, fmt.Errorf("%w: accept entry: %v", entity.ErrStorageUnavailable, err)
	}

	log.With(
		slog.Bool("settled", settled),
		slog.Bool("accepted", accepted),
		slog.String("tg_topic", entity.TopicPayment),
	).Info("payment confirmation applied")

	if settled && r.notifier != nil {
		r.notifier.SendMessage(fmt.Sprintf("Entry %s paid", entryId))
	}
	return settled, nil
}

func (r *Reconciler) audit(ctx context.Context, record *entity.WebhookEvent) {
	if record.EventId == "" {
		return
	}
	if err := r.db.SaveWebhookEvent(ctx, record); err != nil {
		r.log.With(
			slog.String("event_id", record.EventId),
			sl.Err(err),
		).Warn("save webhook event")
	}
}
