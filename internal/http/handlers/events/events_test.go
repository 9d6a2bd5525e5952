package events

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/storefront-bot/internal/errs"
	"github.com/magabrotheeeer/storefront-bot/internal/models"
	"github.com/magabrotheeeer/storefront-bot/internal/services/storefront"
)

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, ev models.Event) (storefront.Reply, error) {
	args := m.Called(ctx, ev)
	return args.Get(0).(storefront.Reply), args.Error(1)
}

func TestEventsHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockDispatcher)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "пробный период активирован",
			body: `{"id":"e-1","type":"text","user_id":7,"text":"123456789"}`,
			setupMock: func(m *MockDispatcher) {
				m.On("Dispatch", mock.Anything, mock.MatchedBy(func(ev models.Event) bool {
					return ev.ID == "e-1" && ev.UserID == 7 && ev.Text == "123456789"
				})).Return(storefront.Reply{Kind: storefront.ReplyTrialActivated, GameID: "123456789"}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"kind":"trial_activated"`,
		},
		{
			name: "отказ ядра приходит с кодом 200",
			body: `{"type":"free_trial","user_id":7}`,
			setupMock: func(m *MockDispatcher) {
				m.On("Dispatch", mock.Anything, mock.Anything).
					Return(storefront.Reply{Kind: storefront.ReplyAlreadyRedeemed}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"kind":"already_redeemed"`,
		},
		{
			name:           "битый JSON",
			body:           `{"type":`,
			setupMock:      func(_ *MockDispatcher) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"invalid request body"}`,
		},
		{
			name: "невалидное событие",
			body: `{"type":"dance","user_id":7}`,
			setupMock: func(m *MockDispatcher) {
				m.On("Dispatch", mock.Anything, mock.Anything).
					Return(storefront.Reply{}, fmt.Errorf("dispatch: %w", errs.ErrValidation))
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"invalid event"`,
		},
		{
			name: "слишком часто",
			body: `{"type":"start","user_id":7}`,
			setupMock: func(m *MockDispatcher) {
				m.On("Dispatch", mock.Anything, mock.Anything).
					Return(storefront.Reply{}, errs.ErrRateLimited)
			},
			expectedStatus: http.StatusTooManyRequests,
			expectedBody:   `"error":"too many events"`,
		},
		{
			name: "хранилище недоступно",
			body: `{"type":"stats","user_id":7}`,
			setupMock: func(m *MockDispatcher) {
				m.On("Dispatch", mock.Anything, mock.Anything).
					Return(storefront.Reply{}, fmt.Errorf("get: %w", errs.ErrStorageUnavailable))
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `"error":"storage unavailable"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockDispatcher)
			tt.setupMock(m)
			h := New(logger, m)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			m.AssertExpectations(t)
		})
	}
}
