// Package poll waits for an entry's payment confirmation after the client
// returns from the hosted checkout.
package poll

import (
	"context"
	"time"

	"entrypay/entity"
)

type Outcome string

const (
	Confirmed Outcome = "confirmed"
	Delayed   Outcome = "delayed"
	Canceled  Outcome = "canceled"
)

type Getter interface {
	EntryByID(ctx context.Context, id string) (*entity.Entry, error)
}

type Options struct {
	Attempts int
	Delay    time.Duration
}

func DefaultOptions() Options {
	return Options{
		Attempts: 20,
		Delay:    750 * time.Millisecond,
	}
}

type Result struct {
	Outcome  Outcome       `json:"outcome"`
	Attempts int           `json:"attempts"`
	Entry    *entity.Entry `json:"entry,omitempty"`
}

// WaitForPayment reads the entry up to opts.Attempts times, opts.Delay apart,
// and stops as soon as it is paid. Read errors count as a missed attempt.
// It never waits longer than Attempts*Delay.
func WaitForPayment(ctx context.Context, g Getter, entryId string, opts Options) *Result {
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	result := &Result{Outcome: Delayed}

	for i := 0; i < opts.Attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				result.Outcome = Canceled
				return result
			case <-time.After(opts.Delay):
			}
		}
		result.Attempts = i + 1

		entry, err := g.EntryByID(ctx, entryId)
		if err != nil || entry == nil {
			continue
		}
		result.Entry = entry
		if entry.IsPaid() {
			result.Outcome = Confirmed
			return result
		}
	}
	return result
}
