// Package status отдаёт администратору сводку по магазину: пользователи,
// пробные периоды, журнал, заказы и активное хранилище.
package status

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/storefront-bot/internal/http/response"
	"github.com/magabrotheeeer/storefront-bot/internal/lib/sl"
	"github.com/magabrotheeeer/storefront-bot/internal/services/storefront"
)

// Service описывает источник сводки.
type Service interface {
	Stats(ctx context.Context) (*storefront.Stats, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.status"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	stats, err := h.service.Stats(r.Context())
	if err != nil {
		log.Error("failed to collect stats", sl.Err(err))
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("could not collect stats"))
		return
	}

	render.JSON(w, r, response.OKWithData(stats))
}
