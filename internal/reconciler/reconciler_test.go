package reconciler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"entrypay/entity"
	"entrypay/internal/database"
	"entrypay/internal/stripeclient"
	"entrypay/lib/clock"
)

const secret = "whsec_test"

var paidNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) SendMessage(msg string) {
	n.messages = append(n.messages, msg)
}

func completedEvent(eventId, entryId string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_test_1","object":"checkout.session","payment_status":"paid","metadata":{"entry_id":%q}}}}`, eventId, entryId))
}

func sign(payload []byte) string {
	return stripeclient.SignatureHeader(payload, secret, time.Now())
}

func newReconciler(db *database.Memory) (*Reconciler, *recordingNotifier) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := New(db, stripeclient.NewVerifier(secret, log), log)
	r.SetClock(clock.Fixed(paidNow))
	n := &recordingNotifier{}
	r.SetNotifier(n)
	return r, n
}

func storeWith(status entity.EntryStatus, payment entity.PaymentStatus) *database.Memory {
	db := database.NewMemory()
	db.PutEntry(&entity.Entry{
		Id:               "e-1",
		CategoryId:       "c-1",
		CreatedBy:        "player-1",
		Status:           status,
		PaymentStatus:    payment,
		PaymentReference: "cs_test_1",
	})
	return db
}

func TestReconciler_HandleNotification(t *testing.T) {
	ctx := context.Background()

	t.Run("Given an unpaid entry When completion arrives Then entry is paid and accepted", func(t *testing.T) {
		// Given
		db := storeWith(entity.StatusPending, entity.PaymentUnpaid)
		r, n := newReconciler(db)
		payload := completedEvent("evt_1", "e-1")

		// When
		err := r.HandleNotification(ctx, payload, sign(payload))

		// Then
		if err != nil {
			t.Fatalf("HandleNotification failed: %v", err)
		}
		entry, _ := db.EntryByID(ctx, "e-1")
		if entry.PaymentStatus != entity.PaymentPaid || entry.Status != entity.StatusAccepted {
			t.Errorf("expected accepted/paid, got %s/%s", entry.Status, entry.PaymentStatus)
		}
		if entry.PaidAt == nil || !entry.PaidAt.Equal(paidNow) {
			t.Errorf("expected paid_at %v, got %v", paidNow, entry.PaidAt)
		}
		if len(n.messages) != 1 {
			t.Errorf("expected one notification, got %d", len(n.messages))
		}
		evt := db.WebhookEvent("evt_1")
		if evt == nil || evt.Outcome != entity.OutcomeSettled || evt.EntryId != "e-1" {
			t.Errorf("unexpected audit record %+v", evt)
		}
	})

	t.Run("Given a delivered event When redelivered Then state and paid_at unchanged", func(t *testing.T) {
		// Given
		db := storeWith(entity.StatusPending, entity.PaymentUnpaid)
		r, n := newReconciler(db)
		payload := completedEvent("evt_1", "e-1")
		if err := r.HandleNotification(ctx, payload, sign(payload)); err != nil {
			t.Fatalf("first delivery failed: %v", err)
		}
		r.SetClock(clock.Fixed(paidNow.Add(time.Hour)))
		writes := db.Writes()

		// When
		err := r.HandleNotification(ctx, payload, sign(payload))

		// Then
		if err != nil {
			t.Fatalf("redelivery failed: %v", err)
		}
		entry, _ := db.EntryByID(ctx, "e-1")
		if !entry.PaidAt.Equal(paidNow) {
			t.Errorf("paid_at moved to %v", entry.PaidAt)
		}
		if db.Writes() != writes {
			t.Errorf("expected no writes on redelivery, got %d", db.Writes()-writes)
		}
		if len(n.messages) != 1 {
			t.Errorf("expected a single notification, got %d", len(n.messages))
		}
		evt := db.WebhookEvent("evt_1")
		if evt.Deliveries != 2 || evt.Outcome != entity.OutcomeNoop {
			t.Errorf("expected 2 deliveries with noop, got %d %s", evt.Deliveries, evt.Outcome)
		}
	})

	t.Run("Given a refunded entry When completion arrives Then status is not regressed", func(t *testing.T) {
		// Given
		db := storeWith(entity.StatusPending, entity.PaymentRefunded)
		r, _ := newReconciler(db)
		payload := completedEvent("evt_1", "e-1")

		// When
		err := r.HandleNotification(ctx, payload, sign(payload))

		// Then
		if err != nil {
			t.Fatalf("HandleNotification failed: %v", err)
		}
		entry, _ := db.EntryByID(ctx, "e-1")
		if entry.PaymentStatus != entity.PaymentRefunded || entry.Status != entity.StatusPending {
			t.Errorf("expected pending/refunded, got %s/%s", entry.Status, entry.PaymentStatus)
		}
	})

	t.Run("Given a waived entry When completion arrives Then it becomes paid", func(t *testing.T) {
		db := storeWith(entity.StatusPending, entity.PaymentWaived)
		r, _ := newReconciler(db)
		payload := completedEvent("evt_1", "e-1")

		_ = r.HandleNotification(ctx, payload, sign(payload))

		entry, _ := db.EntryByID(ctx, "e-1")
		if entry.PaymentStatus != entity.PaymentPaid || entry.Status != entity.StatusAccepted {
			t.Errorf("expected accepted/paid, got %s/%s", entry.Status, entry.PaymentStatus)
		}
	})

	t.Run("Given a withdrawn entry When completion arrives Then paid but stays withdrawn", func(t *testing.T) {
		db := storeWith(entity.StatusWithdrawn, entity.PaymentUnpaid)
		r, _ := newReconciler(db)
		payload := completedEvent("evt_1", "e-1")

		_ = r.HandleNotification(ctx, payload, sign(payload))

		entry, _ := db.EntryByID(ctx, "e-1")
		if entry.PaymentStatus != entity.PaymentPaid || entry.Status != entity.StatusWithdrawn {
			t.Errorf("expected withdrawn/paid, got %s/%s", entry.Status, entry.PaymentStatus)
		}
	})

	t.Run("Given a bad signature When delivered Then rejected without writes", func(t *testing.T) {
		// Given
		db := storeWith(entity.StatusPending, entity.PaymentUnpaid)
		r, _ := newReconciler(db)
		payload := completedEvent("evt_1", "e-1")
		header := stripeclient.SignatureHeader(payload, "whsec_other", time.Now())

		// When
		err := r.HandleNotification(ctx, payload, header)

		// Then
		if !errors.Is(err, entity.ErrInvalidSignature) {
			t.Errorf("expected ErrInvalidSignature, got %v", err)
		}
		if db.Writes() != 0 || db.WebhookEvent("evt_1") != nil {
			t.Error("rejected delivery must not touch the store")
		}
	})

	t.Run("Given no webhook secret When delivered Then NotConfigured without store access", func(t *testing.T) {
		// Given
		db := storeWith(entity.StatusPending, entity.PaymentUnpaid)
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		r := New(db, stripeclient.NewVerifier("", log), log)
		payload := completedEvent("evt_1", "e-1")

		// When
		err := r.HandleNotification(ctx, payload, sign(payload))

		// Then
		if !errors.Is(err, entity.ErrNotConfigured) {
			t.Errorf("expected ErrNotConfigured, got %v", err)
		}
		if db.Writes() != 0 || db.WebhookEvent("evt_1") != nil {
			t.Error("unconfigured webhook must not touch the store")
		}
	})

	t.Run("Given a tampered payload When delivered Then rejected", func(t *testing.T) {
		db := storeWith(entity.StatusPending, entity.PaymentUnpaid)
		r, _ := newReconciler(db)
		header := sign(completedEvent("evt_1", "e-1"))

		err := r.HandleNotification(ctx, completedEvent("evt_1", "e-2"), header)

		if !errors.Is(err, entity.ErrInvalidSignature) {
			t.Errorf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("Given a signed non-json body When delivered Then MalformedEvent", func(t *testing.T) {
		db := storeWith(entity.StatusPending, entity.PaymentUnpaid)
		r, _ := newReconciler(db)
		payload := []byte("not json")

		err := r.HandleNotification(ctx, payload, sign(payload))

		if !errors.Is(err, entity.ErrMalformedEvent) {
			t.Errorf("expected ErrMalformedEvent, got %v", err)
		}
	})

	t.Run("Given another event type When delivered Then acknowledged and ignored", func(t *testing.T) {
		// Given
		db := storeWith(entity.StatusPending, entity.PaymentUnpaid)
		r, _ := newReconciler(db)
		payload := []byte(`{"id":"evt_2","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","metadata":{"entry_id":"e-1"}}}}`)

		// When
		err := r.HandleNotification(ctx, payload, sign(payload))

		// Then
		if err != nil {
			t.Fatalf("expected ack, got %v", err)
		}
		if db.Writes() != 0 {
			t.Error("ignored event must not write entries")
		}
		if evt := db.WebhookEvent("evt_2"); evt == nil || evt.Outcome != entity.OutcomeIgnored {
			t.Errorf("expected ignored audit record, got %+v", evt)
		}
	})

	t.Run("Given no entry_id in metadata When delivered Then acknowledged without writes", func(t *testing.T) {
		// Given
		db := storeWith(entity.StatusPending, entity.PaymentUnpaid)
		r, _ := newReconciler(db)
		payload := []byte(`{"id":"evt_3","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_test_9","metadata":{}}}}`)

		// When
		err := r.HandleNotification(ctx, payload, sign(payload))

		// Then
		if err != nil {
			t.Fatalf("expected ack, got %v", err)
		}
		if db.Writes() != 0 {
			t.Error("expected no entry writes")
		}
		if evt := db.WebhookEvent("evt_3"); evt == nil || evt.Outcome != entity.OutcomeNoEntry {
			t.Errorf("expected missing entry audit record, got %+v", evt)
		}
	})

	t.Run("Given an unknown entry When completion arrives Then acknowledged as noop", func(t *testing.T) {
		db := storeWith(entity.StatusPending, entity.PaymentUnpaid)
		r, n := newReconciler(db)
		payload := completedEvent("evt_4", "missing")

		err := r.HandleNotification(ctx, payload, sign(payload))

		if err != nil {
			t.Fatalf("expected ack, got %v", err)
		}
		if len(n.messages) != 0 {
			t.Error("expected no notification")
		}
		if evt := db.WebhookEvent("evt_4"); evt == nil || evt.Outcome != entity.OutcomeNoop {
			t.Errorf("expected noop audit record, got %+v", evt)
		}
	})

	t.Run("Given the store is down When completion arrives Then acknowledged", func(t *testing.T) {
		// Given
		db := storeWith(entity.StatusPending, entity.PaymentUnpaid)
		db.Fail(errors.New("connection reset"))
		r, _ := newReconciler(db)
		payload := completedEvent("evt_5", "e-1")

		// When
		err := r.HandleNotification(ctx, payload, sign(payload))

		// Then
		if err != nil {
			t.Errorf("storage failures are acknowledged, got %v", err)
		}
		db.Fail(nil)
		entry, _ := db.EntryByID(ctx, "e-1")
		if entry.PaymentStatus != entity.PaymentUnpaid {
			t.Errorf("expected unpaid, got %s", entry.PaymentStatus)
		}
	})
}

func TestReconciler_Settle(t *testing.T) {
	ctx := context.Background()

	t.Run("Given an unpaid entry When settled twice Then only the first call reports settlement", func(t *testing.T) {
		db := storeWith(entity.StatusPending, entity.PaymentUnpaid)
		r, _ := newReconciler(db)

		first, err1 := r.Settle(ctx, "e-1")
		second, err2 := r.Settle(ctx, "e-1")

		if err1 != nil || err2 != nil {
			t.Fatalf("Settle failed: %v / %v", err1, err2)
		}
		if !first || second {
			t.Errorf("expected true then false, got %v then %v", first, second)
		}
	})

	t.Run("Given the store is down When settling Then StorageUnavailable", func(t *testing.T) {
		db := storeWith(entity.StatusPending, entity.PaymentUnpaid)
		db.Fail(errors.New("timeout"))
		r, _ := newReconciler(db)

		_, err := r.Settle(ctx, "e-1")

		if !errors.Is(err, entity.ErrStorageUnavailable) {
			t.Errorf("expected ErrStorageUnavailable, got %v", err)
		}
	})
}
