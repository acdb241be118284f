// Package checkout opens processor checkout sessions for unpaid entries.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/biter777/countries"
	"github.com/shopspring/decimal"

	"entrypay/entity"
	"entrypay/lib/clock"
	"entrypay/lib/sl"
)

type Database interface {
	EntryByID(ctx context.Context, id string) (*entity.Entry, error)
	UpdateEntry(ctx context.Context, id string, cond entity.EntryCondition, upd entity.EntryUpdate) (bool, error)
	Category(ctx context.Context, id string) (*entity.Category, error)
	Tournament(ctx context.Context, id string) (*entity.Tournament, error)
}

type Processor interface {
	CreateSession(ctx context.Context, params *entity.SessionParams) (*entity.CheckoutSession, error)
}

type Service struct {
	db        Database
	processor Processor
	baseUrl   string
	now       clock.Clock
	log       *slog.Logger
}

func New(db Database, processor Processor, baseUrl string, log *slog.Logger) *Service {
	return &Service{
		db:        db,
		processor: processor,
		baseUrl:   strings.TrimRight(baseUrl, "/"),
		now:       clock.System,
		log:       log.With(sl.Module("checkout")),
	}
}

func (s *Service) SetClock(now clock.Clock) {
	s.now = now
}

// CreateCheckout validates the entry's eligibility and opens a checkout session.
// Checks run in a fixed order and the first failure is returned. The session id
// is written to the entry before returning, but only after the processor
// returned a session, so failures leave the entry untouched.
func (s *Service) CreateCheckout(ctx context.Context, req *entity.CheckoutRequest) (*entity.Checkout, error) {
	log := s.log.With(
		sl.Entry(req.EntryId),
		slog.String("caller", req.CallerId),
	)

	entry, err := s.db.EntryByID(ctx, req.EntryId)
	if err != nil {
		return nil, fmt.Errorf("%w: read entry: %v", entity.ErrStorageUnavailable, err)
	}
	if entry == nil {
		return nil, fmt.Errorf("entry %s: %w", req.EntryId, entity.ErrNotFound)
	}

	category, err := s.db.Category(ctx, entry.CategoryId)
	if err != nil {
		return nil, fmt.Errorf("%w: read category: %v", entity.ErrStorageUnavailable, err)
	}
	if category == nil {
		return nil, fmt.Errorf("entry not linked to category: %w", entity.ErrInvalidReference)
	}
	tournament, err := s.db.Tournament(ctx, category.TournamentId)
	if err != nil {
		return nil, fmt.Errorf("%w: read tournament: %v", entity.ErrStorageUnavailable, err)
	}
	if tournament == nil {
		return nil, fmt.Errorf("category not linked to tournament: %w", entity.ErrInvalidReference)
	}

	if !entry.ManagedBy(req.CallerId, tournament) {
		log.Warn("checkout forbidden")
		return nil, entity.ErrForbidden
	}
	if !tournament.RegistrationOpenAt(s.now()) {
		return nil, entity.ErrRegistrationClosed
	}
	if entry.PaymentStatus != entity.PaymentUnpaid {
		return nil, fmt.Errorf("payment status %s: %w", entry.PaymentStatus, entity.ErrAlreadySettled)
	}

	fee, err := parseFee(category.RegistrationFee)
	if err != nil {
		return nil, err
	}
	currency, err := normalizeCurrency(entry.PaymentCurrency)
	if err != nil {
		return nil, err
	}
	log = log.With(
		slog.String("fee", fee.StringFixed(2)),
		slog.String("currency", currency),
	)

	successUrl, cancelUrl, err := s.redirectUrls(entry.Id, req)
	if err != nil {
		return nil, err
	}

	session, err := s.processor.CreateSession(ctx, &entity.SessionParams{
		Name:       fmt.Sprintf("%s - %s", tournament.Title, category.Name),
		Amount:     minorUnits(fee),
		Currency:   currency,
		SuccessUrl: successUrl,
		CancelUrl:  cancelUrl,
		Metadata: map[string]string{
			entity.MetaEntryId:      entry.Id,
			entity.MetaCategoryId:   category.Id,
			entity.MetaTournamentId: tournament.Id,
			entity.MetaUserId:       req.CallerId,
		},
	})
	if err != nil {
		log.With(sl.Err(err)).Error("open checkout session")
		return nil, fmt.Errorf("%w: %v", entity.ErrExternalProcessor, err)
	}
	if session == nil || session.Url == "" {
		return nil, fmt.Errorf("%w: no session url", entity.ErrExternalProcessor)
	}

	checkoutAt := s.now()
	ok, err := s.db.UpdateEntry(ctx, entry.Id,
		entity.EntryCondition{PaymentStatus: []entity.PaymentStatus{entity.PaymentUnpaid}},
		entity.EntryUpdate{
			PaymentReference: session.Id,
			PaymentAmount:    fee.StringFixed(2),
			PaymentCurrency:  currency,
			CheckoutAt:       &checkoutAt,
		},
	)
	if err != nil {
		log.With(
			slog.String("session_id", session.Id),
			sl.Err(err),
		).Error("save payment reference")
		return nil, fmt.Errorf("%w: save payment reference: %v", entity.ErrStorageUnavailable, err)
	}
	if !ok {
		log.With(slog.String("session_id", session.Id)).Warn("entry settled while opening checkout")
		return nil, entity.ErrAlreadySettled
	}

	log.With(slog.String("session_id", session.Id)).Info("checkout created")
	return &entity.Checkout{
		Url:       session.Url,
		SessionId: session.Id,
	}, nil
}

// maxMinorUnits is the largest amount Stripe accepts for a single charge.
const maxMinorUnits = 99_999_999

// parseFee accepts the catalog's fee representation and returns it rounded to
// cents. The rounded amount must be chargeable: at least one cent and within
// the processor limit, so the snapshot always equals what is charged.
func parseFee(raw string) (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("fee %q: %w", raw, entity.ErrInvalidFee)
	}
	fee = fee.Round(2)
	minor := fee.Shift(2)
	if minor.LessThan(decimal.NewFromInt(1)) || minor.GreaterThan(decimal.NewFromInt(maxMinorUnits)) {
		return decimal.Zero, fmt.Errorf("fee %q out of range: %w", raw, entity.ErrInvalidFee)
	}
	return fee, nil
}

// minorUnits expects a fee returned by parseFee.
func minorUnits(fee decimal.Decimal) int64 {
	return fee.Shift(2).IntPart()
}

func normalizeCurrency(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if code == "" {
		code = entity.DefaultCurrency
	}
	currency := countries.CurrencyCodeByName(strings.ToUpper(code))
	if !currency.IsValid() {
		return "", fmt.Errorf("currency %q: %w", raw, entity.ErrInvalidFee)
	}
	return strings.ToLower(currency.Alpha()), nil
}

// redirectUrls returns the processor's success and cancel targets. Both carry
// entry_id so the client can resume polling after the hosted flow.
func (s *Service) redirectUrls(entryId string, req *entity.CheckoutRequest) (string, string, error) {
	successUrl := req.SuccessUrl
	if successUrl == "" {
		successUrl = s.baseUrl + "/tournaments/register?payment=success"
	}
	cancelUrl := req.CancelUrl
	if cancelUrl == "" {
		cancelUrl = s.baseUrl + "/tournaments/register?payment=cancel"
	}

	successUrl, err := withEntryId(successUrl, entryId)
	if err != nil {
		return "", "", err
	}
	cancelUrl, err = withEntryId(cancelUrl, entryId)
	if err != nil {
		return "", "", err
	}
	// the placeholder must stay unescaped for the processor to substitute it
	return successUrl + "&session_id={CHECKOUT_SESSION_ID}", cancelUrl, nil
}

func withEntryId(raw, entryId string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("redirect url %q: %w", raw, err)
	}
	q := u.Query()
	q.Set(entity.MetaEntryId, entryId)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
