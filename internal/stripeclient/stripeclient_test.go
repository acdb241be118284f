package stripeclient

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stripe/stripe-go/v76"
)

func TestSessionFromStripe(t *testing.T) {
	cs := &stripe.CheckoutSession{
		ID:            "cs_test_1",
		URL:           "https://checkout.stripe.com/c/pay/cs_test_1",
		Status:        stripe.CheckoutSessionStatusComplete,
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		Metadata:      map[string]string{"entry_id": "e-1"},
	}

	s := sessionFromStripe(cs)

	if s.Id != "cs_test_1" || s.Status != "complete" || s.PaymentStatus != "paid" {
		t.Errorf("unexpected session %+v", s)
	}
	if s.Metadata["entry_id"] != "e-1" {
		t.Errorf("metadata not carried: %v", s.Metadata)
	}
}

func TestStripeClient_ParseErr(t *testing.T) {
	s := &StripeClient{}

	t.Run("Given a stripe error When parsed Then status and message are kept", func(t *testing.T) {
		err := fmt.Errorf("request: %w", &stripe.Error{HTTPStatusCode: http.StatusBadRequest, Msg: "Invalid currency"})

		got := s.parseErr(err)

		if got.Error() != "status 400: Invalid currency" {
			t.Errorf("unexpected error %q", got)
		}
	})

	t.Run("Given another error When parsed Then returned as is", func(t *testing.T) {
		err := errors.New("dial tcp: timeout")

		if got := s.parseErr(err); got != err {
			t.Errorf("expected the same error, got %v", got)
		}
	})
}
