package status

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/RonMizrahi/access-control/internal/http/middlewarectx"
	"github.com/RonMizrahi/access-control/internal/models"
)

func newTestHandler(now time.Time) *Handler {
	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), now.Add(-time.Minute))
	h.now = func() time.Time { return now }
	return h
}

func TestStatus(t *testing.T) {
	now := time.UnixMilli(1735732800000)
	h := newTestHandler(now)

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantBody string
	}{
		{
			name:     "v1",
			handler:  h.V1,
			wantBody: `{"status":"OK","version":"1.0","timestamp":1735732800000}`,
		},
		{
			name:     "v2",
			handler:  h.V2,
			wantBody: `{"status":"OK","version":"2.0","timestamp":1735732800000,"uptime":60000,"health":"UP"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestMe(t *testing.T) {
	h := newTestHandler(time.Now())

	t.Run("with identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		req = req.WithContext(middlewarectx.WithIdentity(req.Context(), &models.Identity{
			Username: "alice",
			Roles:    models.Roles{models.RoleAdmin, models.RoleUser},
		}))
		w := httptest.NewRecorder()
		h.Me(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"OK","data":{"username":"alice","roles":["ADMIN","USER"]}}`, w.Body.String())
	})

	t.Run("without identity", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Me(w, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
