// Package identifiers проверяет игровой ID без изменения состояния магазина.
package identifiers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/storefront-bot/internal/http/response"
	"github.com/magabrotheeeer/storefront-bot/internal/lib/gameid"
	"github.com/magabrotheeeer/storefront-bot/internal/lib/sl"
)

// Request тело запроса на проверку.
type Request struct {
	GameID string `json:"game_id" validate:"required,gameid"`
}

type Handler struct {
	log      *slog.Logger
	validate *validator.Validate
}

// New создаёт Handler. В validate должно быть зарегистрировано правило gameid.
func New(log *slog.Logger, validate *validator.Validate) *Handler {
	return &Handler{
		log:      log,
		validate: validate,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.identifiers.validate"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		vErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			log.Error("validation failed", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("validation failed"))
			return
		}
		log.Debug("identifier rejected", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(vErrs))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"game_id": gameid.Normalize(req.GameID),
		"digits":  gameid.Digits(req.GameID),
		"valid":   true,
	}))
}

