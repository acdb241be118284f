package stripeclient

import (
	"bytes"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"
)

func testVerifier(secret string) *Verifier {
	return NewVerifier(secret, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestVerifier_VerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Unix(1_778_000_000, 0)

	tests := []struct {
		name   string
		secret string
		header string
		want   bool
	}{
		{
			name:   "valid signature",
			secret: "whsec_a",
			header: SignatureHeader(payload, "whsec_a", now),
			want:   true,
		},
		{
			name:   "second v1 matches",
			secret: "whsec_a",
			header: SignatureHeader(payload, "whsec_old", now) + ",v1=" + computeSignature(payload, strconv.FormatInt(now.Unix(), 10), "whsec_a"),
			want:   true,
		},
		{
			name:   "wrong secret",
			secret: "whsec_a",
			header: SignatureHeader(payload, "whsec_b", now),
		},
		{
			name:   "stale timestamp",
			secret: "whsec_a",
			header: SignatureHeader(payload, "whsec_a", now.Add(-10*time.Minute)),
		},
		{
			name:   "no timestamp",
			secret: "whsec_a",
			header: "v1=" + computeSignature(payload, "0", "whsec_a"),
		},
		{
			name:   "garbage header",
			secret: "whsec_a",
			header: "nonsense",
		},
		{
			name:   "secret not configured",
			secret: "",
			header: SignatureHeader(payload, "", now),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := testVerifier(tt.secret)
			v.now = func() time.Time { return now }

			got := v.VerifySignature(payload, tt.header, 5*time.Minute)

			if got != tt.want {
				t.Errorf("VerifySignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerifier_TamperedPayload(t *testing.T) {
	now := time.Now()
	v := testVerifier("whsec_a")
	header := SignatureHeader([]byte(`{"amount":100}`), "whsec_a", now)

	if v.VerifySignature([]byte(`{"amount":999}`), header, 5*time.Minute) {
		t.Error("tampered payload must not verify")
	}
}

func TestNewVerifier_MissingSecret(t *testing.T) {
	t.Run("Given an empty secret When the verifier is created Then an error is logged", func(t *testing.T) {
		// Given
		var buf bytes.Buffer
		log := slog.New(slog.NewTextHandler(&buf, nil))

		// When
		v := NewVerifier("", log)

		// Then
		if v.Configured() {
			t.Error("expected verifier to report missing secret")
		}
		if !strings.Contains(buf.String(), "level=ERROR") {
			t.Errorf("expected an error record, got %q", buf.String())
		}
	})

	t.Run("Given a secret When the verifier is created Then nothing is logged", func(t *testing.T) {
		var buf bytes.Buffer

		v := NewVerifier("whsec_a", slog.New(slog.NewTextHandler(&buf, nil)))

		if !v.Configured() || buf.Len() != 0 {
			t.Errorf("expected a quiet configured verifier, got %q", buf.String())
		}
	})
}
