package plan

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/RonMizrahi/access-control/internal/models"
	"github.com/RonMizrahi/access-control/internal/storage"
)

type PlanServiceMock struct {
	mock.Mock
}

func (m *PlanServiceMock) ChangePlan(ctx context.Context, username string, plan models.SubscriptionPlan) error {
	return m.Called(ctx, username, plan).Error(0)
}

func TestPlanHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMock      func(m *PlanServiceMock)
		wantStatusCode int
		wantBody       string
	}{
		{
			name: "plan changed",
			body: `{"plan":"BASIC"}`,
			setupMock: func(m *PlanServiceMock) {
				m.On("ChangePlan", mock.Anything, "alice", models.PlanBasic).Return(nil).Once()
			},
			wantStatusCode: http.StatusOK,
			wantBody:       `{"status":"OK","data":{"username":"alice","plan":"BASIC"}}`,
		},
		{
			name:           "bad json",
			body:           `{`,
			setupMock:      func(_ *PlanServiceMock) {},
			wantStatusCode: http.StatusBadRequest,
			wantBody:       `{"status":"Error","error":"invalid request body"}`,
		},
		{
			name:           "unknown plan",
			body:           `{"plan":"GOLD"}`,
			setupMock:      func(_ *PlanServiceMock) {},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantBody:       `{"status":"Error","error":"field Plan must be one of [FREE BASIC PROFESSIONAL]"}`,
		},
		{
			name: "unknown user",
			body: `{"plan":"FREE"}`,
			setupMock: func(m *PlanServiceMock) {
				m.On("ChangePlan", mock.Anything, "alice", models.PlanFree).
					Return(storage.ErrUserNotFound).Once()
			},
			wantStatusCode: http.StatusNotFound,
			wantBody:       `{"status":"Error","error":"user not found"}`,
		},
		{
			name: "store failure",
			body: `{"plan":"PROFESSIONAL"}`,
			setupMock: func(m *PlanServiceMock) {
				m.On("ChangePlan", mock.Anything, "alice", models.PlanProfessional).
					Return(errors.New("db is down")).Once()
			},
			wantStatusCode: http.StatusInternalServerError,
			wantBody:       `{"status":"Error","error":"internal error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(PlanServiceMock)
			tt.setupMock(svc)

			r := chi.NewRouter()
			r.Method(http.MethodPut, "/api/v1/admin/users/{username}/plan",
				New(slog.New(slog.NewTextHandler(io.Discard, nil)), svc))

			req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/users/alice/plan", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatusCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
			svc.AssertExpectations(t)
		})
	}
}
