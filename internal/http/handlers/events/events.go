// Package events принимает входящие события по HTTP и передаёт их диспетчеру.
//
// Ответ ядра возвращается в теле ответа как есть. Ожидаемые отказы
// (уже использован пробный период, нет прав, неверный ID) приходят со статусом 200
// и соответствующим kind, ошибки транспорта и хранилища с кодом 4xx/5xx.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/storefront-bot/internal/errs"
	"github.com/magabrotheeeer/storefront-bot/internal/http/response"
	"github.com/magabrotheeeer/storefront-bot/internal/lib/sl"
	"github.com/magabrotheeeer/storefront-bot/internal/models"
	"github.com/magabrotheeeer/storefront-bot/internal/services/storefront"
)

// Dispatcher описывает обработку одного события.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev models.Event) (storefront.Reply, error)
}

type Handler struct {
	log        *slog.Logger
	dispatcher Dispatcher
}

func New(log *slog.Logger, dispatcher Dispatcher) *Handler {
	return &Handler{
		log:        log,
		dispatcher: dispatcher,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.events"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var ev models.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if ev.ID == "" {
		ev.ID = middleware.GetReqID(r.Context())
	}

	reply, err := h.dispatcher.Dispatch(r.Context(), ev)
	if err != nil {
		status, msg := statusFor(err)
		log.Error("failed to dispatch event", slog.String("type", string(ev.Type)), sl.Err(err))
		render.Status(r, status)
		render.JSON(w, r, response.Error(msg))
		return
	}

	render.JSON(w, r, response.OKWithData(reply))
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, "invalid event"
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, "too many events"
	case errors.Is(err, errs.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage unavailable"
	default:
		return http.StatusInternalServerError, "could not handle event"
	}
}
