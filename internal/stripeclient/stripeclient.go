package stripeclient

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"entrypay/entity"
	"entrypay/internal/config"
	"entrypay/lib/sl"
)

type StripeClient struct {
	*Verifier
	sc      *client.API
	timeout time.Duration
	log     *slog.Logger
}

func New(conf *config.Config, logger *slog.Logger) *StripeClient {
	stripeKey, webhookSecret := conf.StripeKeys()
	if conf.Stripe.TestMode {
		logger.With(
			sl.Secret("api_key", stripeKey),
			sl.Secret("webhook_secret", webhookSecret),
		).Info("using test mode for stripe")
	}
	sc := &client.API{}
	sc.Init(stripeKey, nil)
	return &StripeClient{
		Verifier: NewVerifier(webhookSecret, logger),
		sc:       sc,
		timeout:  time.Duration(conf.Stripe.Timeout) * time.Second,
		log:      logger.With(sl.Module("stripe")),
	}
}

// CreateSession opens a hosted checkout session with a single line item.
// The call is bounded by the configured timeout.
func (s *StripeClient) CreateSession(ctx context.Context, params *entity.SessionParams) (*entity.CheckoutSession, error) {
	log := s.log.With(
		slog.Int64("amount", params.Amount),
		slog.String("currency", params.Currency),
		slog.String("entry_id", params.Metadata[entity.MetaEntryId]),
	)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	csParams := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(params.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(params.Name),
					},
					UnitAmount: stripe.Int64(params.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata:            params.Metadata,
		SuccessURL:          stripe.String(params.SuccessUrl),
		CancelURL:           stripe.String(params.CancelUrl),
		AllowPromotionCodes: stripe.Bool(true),
	}
	csParams.Context = ctx

	cs, err := s.sc.CheckoutSessions.New(csParams)
	if err != nil {
		err = s.parseErr(err)
		log.With(sl.Err(err)).Error("create checkout session")
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	if cs.URL == "" {
		return nil, fmt.Errorf("stripe checkout session %s: empty url", cs.ID)
	}

	log.With(slog.String("session_id", cs.ID)).Info("checkout session created")
	return sessionFromStripe(cs), nil
}

// Session fetches the current state of a checkout session.
func (s *StripeClient) Session(ctx context.Context, id string) (*entity.CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	cs, err := s.sc.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe get session: %w", s.parseErr(err))
	}
	return sessionFromStripe(cs), nil
}

func sessionFromStripe(cs *stripe.CheckoutSession) *entity.CheckoutSession {
	return &entity.CheckoutSession{
		Id:            cs.ID,
		Url:           cs.URL,
		Status:        string(cs.Status),
		PaymentStatus: string(cs.PaymentStatus),
		Metadata:      cs.Metadata,
	}
}
