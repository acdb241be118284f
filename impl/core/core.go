package core

import (
	"context"
	"fmt"
	"log/slog"

	"entrypay/entity"
	"entrypay/internal/admission"
	"entrypay/internal/checkout"
	"entrypay/internal/poll"
	"entrypay/internal/reconciler"
	"entrypay/lib/sl"
)

type AuthService interface {
	UserByToken(token string) (*entity.User, error)
}

// Core wires the services behind the HTTP handlers.
type Core struct {
	admission  *admission.Service
	checkout   *checkout.Service
	reconciler *reconciler.Reconciler
	entries    poll.Getter
	pollOpts   poll.Options
	auth       AuthService
	log        *slog.Logger
}

func New(adm *admission.Service, co *checkout.Service, rec *reconciler.Reconciler, entries poll.Getter, log *slog.Logger) *Core {
	if adm == nil || co == nil || rec == nil {
		panic("core services are nil")
	}
	return &Core{
		admission:  adm,
		checkout:   co,
		reconciler: rec,
		entries:    entries,
		pollOpts:   poll.DefaultOptions(),
		log:        log.With(sl.Module("core")),
	}
}

func (c *Core) SetAuthService(auth AuthService) {
	c.auth = auth
}

func (c *Core) SetPollOptions(opts poll.Options) {
	c.pollOpts = opts
}

func (c *Core) AuthenticateByToken(token string) (*entity.User, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("auth service not connected")
	}
	return c.auth.UserByToken(token)
}

func (c *Core) EnsureEntry(ctx context.Context, participantId, categoryId string) (string, error) {
	return c.admission.EnsureEntry(ctx, participantId, categoryId)
}

func (c *Core) Entry(ctx context.Context, entryId, callerId string) (*entity.Entry, error) {
	return c.admission.Entry(ctx, entryId, callerId)
}

func (c *Core) WithdrawEntry(ctx context.Context, entryId, callerId string) (*entity.Entry, error) {
	return c.admission.Withdraw(ctx, entryId, callerId)
}

// PaymentStatus reports the entry's payment state; with wait it polls until
// the payment is confirmed or the attempts run out.
func (c *Core) PaymentStatus(ctx context.Context, entryId, callerId string, wait bool) (*poll.Result, error) {
	entry, err := c.admission.Entry(ctx, entryId, callerId)
	if err != nil {
		return nil, err
	}
	if !wait || entry.IsPaid() {
		outcome := poll.Delayed
		if entry.IsPaid() {
			outcome = poll.Confirmed
		}
		return &poll.Result{Outcome: outcome, Attempts: 1, Entry: entry}, nil
	}
	return poll.WaitForPayment(ctx, c.entries, entryId, c.pollOpts), nil
}

func (c *Core) CreateCheckout(ctx context.Context, req *entity.CheckoutRequest) (*entity.Checkout, error) {
	return c.checkout.CreateCheckout(ctx, req)
}

func (c *Core) HandleNotification(ctx context.Context, payload []byte, signature string) error {
	return c.reconciler.HandleNotification(ctx, payload, signature)
}
