package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"entrypay/entity"
	"entrypay/lib/api/cont"
	"entrypay/lib/api/response"
	"entrypay/lib/sl"
)

type Core interface {
	CreateCheckout(ctx context.Context, req *entity.CheckoutRequest) (*entity.Checkout, error)
}

// Create opens a checkout session for an entry and responds with {url, session_id}.
func Create(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.checkout")
		user := cont.GetUser(r.Context())

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("user", user.Username),
		)

		if handler == nil {
			logger.Error("checkout service not available")
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, response.Error("Checkout service not available"))
			return
		}

		var req entity.CheckoutRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		req.CallerId = user.Id
		logger = logger.With(sl.Entry(req.EntryId))

		co, err := handler.CreateCheckout(r.Context(), &req)
		if err != nil {
			logger.Warn("create checkout", sl.Err(err))
			render.Status(r, response.StatusCode(err))
			render.JSON(w, r, response.Failure(err))
			return
		}
		logger.Debug("checkout created", slog.String("session_id", co.SessionId))

		render.JSON(w, r, co)
	}
}
