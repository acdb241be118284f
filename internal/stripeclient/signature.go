package stripeclient

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"entrypay/lib/sl"
)

// Verifier checks the Stripe-Signature header of webhook deliveries:
// "t=<unix>,v1=<hex hmac-sha256 of "<t>.<payload>">", possibly with several v1 entries.
type Verifier struct {
	secret string
	now    func() time.Time
	log    *slog.Logger
}

func NewVerifier(secret string, logger *slog.Logger) *Verifier {
	v := &Verifier{
		secret: secret,
		now:    time.Now,
		log:    logger.With(sl.Module("stripe.signature")),
	}
	if secret == "" {
		v.log.Error("webhook secret is not configured; all webhook deliveries will fail")
	}
	return v
}

// Configured reports whether a webhook secret is set.
func (v *Verifier) Configured() bool {
	return v.secret != ""
}

func (v *Verifier) VerifySignature(payload []byte, header string, tolerance time.Duration) bool {
	if v.secret == "" {
		v.log.Warn("webhook secret is not configured")
		return false
	}
	var ts string
	var sigs []string
	for _, p := range strings.Split(header, ",") {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "t=") {
			ts = strings.TrimPrefix(p, "t=")
		}
		if strings.HasPrefix(p, "v1=") {
			sigs = append(sigs, strings.TrimPrefix(p, "v1="))
		}
	}
	if ts == "" || len(sigs) == 0 {
		v.log.Warn("missing timestamp or signature in header")
		return false
	}

	tsInt, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		v.log.With(sl.Err(err)).Warn("failed to parse timestamp")
		return false
	}

	eventTime := time.Unix(tsInt, 0)
	timeSince := v.now().Sub(eventTime)
	if timeSince > tolerance {
		v.log.With(
			slog.Time("timestamp", eventTime),
			slog.Duration("age", timeSince),
			slog.Duration("tolerance", tolerance),
		).Warn("webhook timestamp too old")
		return false
	}

	expected := []byte(computeSignature(payload, ts, v.secret))
	for _, sig := range sigs {
		if hmac.Equal(expected, []byte(sig)) {
			return true
		}
	}
	v.log.With(
		sl.Secret("secret", v.secret),
	).Warn("signature mismatch")
	return false
}

func computeSignature(payload []byte, ts, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader builds a Stripe-Signature header value for payload signed at t.
func SignatureHeader(payload []byte, secret string, t time.Time) string {
	ts := strconv.FormatInt(t.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", ts, computeSignature(payload, ts, secret))
}
