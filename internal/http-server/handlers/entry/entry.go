package entry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"entrypay/entity"
	"entrypay/internal/poll"
	"entrypay/lib/api/cont"
	"entrypay/lib/api/response"
	"entrypay/lib/sl"
)

type Core interface {
	EnsureEntry(ctx context.Context, participantId, categoryId string) (string, error)
	Entry(ctx context.Context, entryId, callerId string) (*entity.Entry, error)
	WithdrawEntry(ctx context.Context, entryId, callerId string) (*entity.Entry, error)
	PaymentStatus(ctx context.Context, entryId, callerId string, wait bool) (*poll.Result, error)
}

type registered struct {
	EntryId string `json:"entry_id"`
}

type paymentState struct {
	EntryId       string               `json:"entry_id"`
	Status        entity.EntryStatus   `json:"status,omitempty"`
	PaymentStatus entity.PaymentStatus `json:"payment_status,omitempty"`
	Outcome       poll.Outcome         `json:"outcome"`
	Attempts      int                  `json:"attempts"`
}

func requestLogger(log *slog.Logger, r *http.Request) (*slog.Logger, *entity.User) {
	user := cont.GetUser(r.Context())
	return log.With(
		sl.Module("http.handlers.entry"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("user", user.Username),
	), user
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, response.StatusCode(err))
	render.JSON(w, r, response.Failure(err))
}

// Register returns the caller's entry for a category, creating it when needed.
func Register(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, user := requestLogger(log, r)

		var req entity.RegistrationRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}

		id, err := handler.EnsureEntry(r.Context(), user.Id, req.CategoryId)
		if err != nil {
			logger.Warn("ensure entry", slog.String("category_id", req.CategoryId), sl.Err(err))
			fail(w, r, err)
			return
		}

		render.JSON(w, r, response.Ok(registered{EntryId: id}))
	}
}

func Get(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, user := requestLogger(log, r)
		id := chi.URLParam(r, "id")

		e, err := handler.Entry(r.Context(), id, user.Id)
		if err != nil {
			logger.Debug("get entry", sl.Entry(id), sl.Err(err))
			fail(w, r, err)
			return
		}

		render.JSON(w, r, response.Ok(e))
	}
}

func Withdraw(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, user := requestLogger(log, r)
		id := chi.URLParam(r, "id")

		e, err := handler.WithdrawEntry(r.Context(), id, user.Id)
		if err != nil {
			logger.Warn("withdraw entry", sl.Entry(id), sl.Err(err))
			fail(w, r, err)
			return
		}

		render.JSON(w, r, response.Ok(e))
	}
}

// Payment reports whether the entry's payment is confirmed. With ?wait=true it
// polls for a bounded time; an unconfirmed result is reported as "delayed".
func Payment(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger, user := requestLogger(log, r)
		id := chi.URLParam(r, "id")
		wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

		result, err := handler.PaymentStatus(r.Context(), id, user.Id, wait)
		if err != nil {
			logger.Debug("payment status", sl.Entry(id), sl.Err(err))
			fail(w, r, err)
			return
		}

		state := paymentState{
			EntryId:  id,
			Outcome:  result.Outcome,
			Attempts: result.Attempts,
		}
		if state.Outcome == poll.Canceled {
			state.Outcome = poll.Delayed
		}
		if result.Entry != nil {
			state.Status = result.Entry.Status
			state.PaymentStatus = result.Entry.PaymentStatus
		}
		render.JSON(w, r, response.Ok(state))
	}
}
