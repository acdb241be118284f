package stripehandler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"entrypay/entity"
	"entrypay/lib/api/response"
	"entrypay/lib/sl"
)

const maxPayloadBytes = 1 << 20

type Core interface {
	HandleNotification(ctx context.Context, payload []byte, signature string) error
}

type ack struct {
	Received bool `json:"received"`
}

// Event receives processor webhooks. Anything past signature and parse checks is
// acknowledged with {received: true}.
func Event(logger *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.With(
			sl.Module("http.handlers.stripe"),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
		if err != nil {
			log.With(sl.Err(err)).Error("read request body")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("read"))
			return
		}

		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			log.Warn("missing stripe-signature")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Missing stripe-signature"))
			return
		}

		// processing must not depend on the client connection staying open
		err = handler.HandleNotification(context.WithoutCancel(r.Context()), payload, sig)
		if err != nil {
			status := response.StatusCode(err)
			message := "Invalid payload"
			switch {
			case errors.Is(err, entity.ErrInvalidSignature):
				message = "Invalid signature"
			case errors.Is(err, entity.ErrNotConfigured):
				message = "Webhook not configured"
			}
			log.With(
				sl.Err(err),
				slog.String("tg_topic", entity.TopicSecurity),
			).Error("webhook rejected")
			render.Status(r, status)
			render.JSON(w, r, response.Error(message))
			return
		}

		render.JSON(w, r, ack{Received: true})
	}
}
