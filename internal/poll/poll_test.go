package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"entrypay/entity"
)

// scripted returns the entries in order, repeating the last one.
type scripted struct {
	steps []*entity.Entry
	errs  []error
	calls int
}

func (s *scripted) EntryByID(_ context.Context, _ string) (*entity.Entry, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	return s.steps[i], nil
}

func entryWith(status entity.PaymentStatus) *entity.Entry {
	return &entity.Entry{Id: "e-1", PaymentStatus: status}
}

func TestWaitForPayment(t *testing.T) {
	ctx := context.Background()
	opts := Options{Attempts: 5, Delay: time.Millisecond}

	t.Run("Given payment confirmed on third read When waiting Then confirmed after three attempts", func(t *testing.T) {
		// Given
		g := &scripted{steps: []*entity.Entry{
			entryWith(entity.PaymentUnpaid),
			entryWith(entity.PaymentUnpaid),
			entryWith(entity.PaymentPaid),
		}}

		// When
		res := WaitForPayment(ctx, g, "e-1", opts)

		// Then
		if res.Outcome != Confirmed || res.Attempts != 3 {
			t.Errorf("expected confirmed after 3, got %s after %d", res.Outcome, res.Attempts)
		}
		if g.calls != 3 {
			t.Errorf("expected polling to stop, got %d reads", g.calls)
		}
	})

	t.Run("Given payment never confirmed When waiting Then delayed after all attempts", func(t *testing.T) {
		g := &scripted{steps: []*entity.Entry{entryWith(entity.PaymentUnpaid)}}

		res := WaitForPayment(ctx, g, "e-1", opts)

		if res.Outcome != Delayed || res.Attempts != 5 {
			t.Errorf("expected delayed after 5, got %s after %d", res.Outcome, res.Attempts)
		}
	})

	t.Run("Given read errors When waiting Then errors count as missed attempts", func(t *testing.T) {
		g := &scripted{
			steps: []*entity.Entry{nil, nil, entryWith(entity.PaymentPaid)},
			errs:  []error{errors.New("timeout"), errors.New("timeout")},
		}

		res := WaitForPayment(ctx, g, "e-1", opts)

		if res.Outcome != Confirmed || res.Attempts != 3 {
			t.Errorf("expected confirmed after 3, got %s after %d", res.Outcome, res.Attempts)
		}
	})

	t.Run("Given a canceled context When waiting Then stops early", func(t *testing.T) {
		// Given
		g := &scripted{steps: []*entity.Entry{entryWith(entity.PaymentUnpaid)}}
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		// When
		res := WaitForPayment(cctx, g, "e-1", Options{Attempts: 20, Delay: time.Hour})

		// Then
		if res.Outcome != Canceled || res.Attempts != 1 {
			t.Errorf("expected canceled after 1, got %s after %d", res.Outcome, res.Attempts)
		}
	})

	t.Run("Given zero attempts When waiting Then reads once", func(t *testing.T) {
		g := &scripted{steps: []*entity.Entry{entryWith(entity.PaymentPaid)}}

		res := WaitForPayment(ctx, g, "e-1", Options{})

		if res.Outcome != Confirmed || g.calls != 1 {
			t.Errorf("expected one confirmed read, got %s with %d reads", res.Outcome, g.calls)
		}
	})
}
