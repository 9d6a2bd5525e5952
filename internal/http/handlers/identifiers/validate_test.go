package identifiers

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/storefront-bot/internal/lib/gameid"
)

func TestValidateHandler(t *testing.T) {
	v := validator.New()
	require.NoError(t, gameid.Register(v))
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), v)

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "валидный ID с разделителями",
			body:           `{"game_id":" 1234-5678 "}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `"digits":"12345678"`,
		},
		{
			name:           "мало цифр",
			body:           `{"game_id":"1234567"}`,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `must contain at least 8 digits`,
		},
		{
			name:           "пустой ID",
			body:           `{}`,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `is a required field`,
		},
		{
			name:           "битый JSON",
			body:           `{`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"invalid request body"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/identifiers/validate", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()

			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
		})
	}
}
