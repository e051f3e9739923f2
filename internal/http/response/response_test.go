package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	type request struct {
		Username string `json:"username" validate:"required,max=5"`
		Password string `json:"password" validate:"required"`
		Plan     string `json:"plan" validate:"omitempty,oneof=FREE BASIC"`
	}

	err := validator.New().Struct(request{Username: "too-long-name", Plan: "GOLD"})
	require.Error(t, err)

	resp := ValidationError(err.(validator.ValidationErrors))
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "field Username must be at most 5 characters")
	assert.Contains(t, resp.Error, "field Password is a required field")
	assert.Contains(t, resp.Error, "field Plan must be one of [FREE BASIC]")
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteError(w, r, http.StatusTooManyRequests, "rate limit exceeded")

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"status":"Error","error":"rate limit exceeded"}`, w.Body.String())
}

func TestStatusOKWithData(t *testing.T) {
	resp := StatusOKWithData(map[string]string{"k": "v"})
	assert.Equal(t, StatusOK, resp.Status)
	assert.Empty(t, resp.Error)
	assert.Equal(t, map[string]string{"k": "v"}, resp.Data)
}
