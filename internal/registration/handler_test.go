package registration_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/registration-service/internal/models"
	"github.com/ayush/registration-service/internal/registration"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func post(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/registration/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHandler_Scenarios(t *testing.T) {
	svc, accounts := newMemoryService(registration.WithObserver(registration.NewLogObserver(discardLogger())))
	h := registration.NewHandler(svc, discardLogger())

	alice := `{"username":"alice","email":"alice@example.com","password":"Secret1","confirmPassword":"Secret1"}`

	t.Run("first registration succeeds", func(t *testing.T) {
		rr := post(t, h.Register, alice)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		assert.Equal(t, models.MessageResponse{Message: "User registered successfully."}, decode[models.MessageResponse](t, rr))
		assert.Equal(t, 1, accounts.Len())
	})

	t.Run("repeat is rejected", func(t *testing.T) {
		rr := post(t, h.Register, alice)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, models.MessageResponse{Message: "Username already exists."}, decode[models.MessageResponse](t, rr))
		assert.Equal(t, 1, accounts.Len())
	})

	t.Run("bad email", func(t *testing.T) {
		rr := post(t, h.Register, `{"username":"bob","email":"not-an-email","password":"123456","confirmPassword":"123456"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, map[string][]string{
			"email": {"The Email field is not a valid e-mail address."},
		}, decode[map[string][]string](t, rr))
		assert.Equal(t, 1, accounts.Len())
	})

	t.Run("short password", func(t *testing.T) {
		rr := post(t, h.Register, `{"username":"carol","email":"c@example.com","password":"abc","confirmPassword":"abc"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, map[string][]string{
			"password": {"The Password must be at least 6 and at max 100 characters long."},
		}, decode[map[string][]string](t, rr))
		assert.Equal(t, 1, accounts.Len())
	})

	t.Run("directory policy rejection", func(t *testing.T) {
		rr := post(t, h.Register, `{"username":"dave","email":"d@example.com","password":"abcdefg","confirmPassword":"abcdefg"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, map[string][]string{
			"password": {
				"Passwords must have at least one digit ('0'-'9').",
				"Passwords must have at least one uppercase ('A'-'Z').",
			},
		}, decode[map[string][]string](t, rr))
		assert.Equal(t, 1, accounts.Len())
	})

	t.Run("overlong username", func(t *testing.T) {
		name := strings.Repeat("n", 300)
		rr := post(t, h.Register, `{"username":"`+name+`","email":"n@example.com","password":"Secret1","confirmPassword":"Secret1"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, map[string][]string{
			"username": {"The field Username must be a string with a maximum length of 256."},
		}, decode[map[string][]string](t, rr))
		assert.Equal(t, 1, accounts.Len())
	})

	t.Run("missing fields", func(t *testing.T) {
		rr := post(t, h.Register, `{}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, map[string][]string{
			"username": {"The Username field is required."},
			"email":    {"The Email field is required."},
			"password": {"The Password field is required."},
		}, decode[map[string][]string](t, rr))
	})

	t.Run("malformed body", func(t *testing.T) {
		rr := post(t, h.Register, `{"username":`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decode[map[string][]string](t, rr), "")
	})

	t.Run("empty body", func(t *testing.T) {
		rr := post(t, h.Register, ``)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, map[string][]string{"": {"A non-empty request body is required."}}, decode[map[string][]string](t, rr))
	})
}

type failingRegisterer struct{}

func (failingRegisterer) Register(context.Context, models.RegistrationRequest) (registration.Result, error) {
	return registration.Result{}, errors.New("pq: connection reset")
}

func TestHandler_InternalErrorHidesDetails(t *testing.T) {
	h := registration.NewHandler(failingRegisterer{}, discardLogger())

	rr := post(t, h.Register, `{"username":"x","email":"x@example.com","password":"Secret1","confirmPassword":"Secret1"}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection reset")
	assert.Equal(t, "An unexpected error occurred.", decode[models.MessageResponse](t, rr).Message)
}

func TestErrorMap_GroupsByField(t *testing.T) {
	got := registration.ErrorMap([]registration.Finding{
		{Field: "password", Message: "a"},
		{Field: "", Message: "b"},
		{Field: "password", Message: "c"},
	})
	assert.Equal(t, map[string][]string{"password": {"a", "c"}, "": {"b"}}, got)
}
