package registration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ayush/registration-service/internal/models"
)

const maxBodyBytes = 1 << 20

// Registerer is the operation the handler serves.
type Registerer interface {
	Register(ctx context.Context, req models.RegistrationRequest) (Result, error)
}

// Handler holds the registration HTTP handlers.
type Handler struct {
	svc    Registerer
	logger *slog.Logger
}

func NewHandler(svc Registerer, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Register creates a new account from the JSON body.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegistrationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		msg := "The request body could not be parsed as JSON."
		if errors.Is(err, io.EOF) {
			msg = "A non-empty request body is required."
		}
		writeJSON(w, http.StatusBadRequest, map[string][]string{"": {msg}})
		return
	}

	res, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "registration failed", "username", req.Username, "error", err)
		writeJSON(w, http.StatusInternalServerError, models.MessageResponse{Message: "An unexpected error occurred."})
		return
	}

	switch res.Kind {
	case Success:
		writeJSON(w, http.StatusOK, models.MessageResponse{Message: res.Message})
	case Conflict:
		writeJSON(w, http.StatusBadRequest, models.MessageResponse{Message: res.Message})
	default:
		writeJSON(w, http.StatusBadRequest, ErrorMap(res.Findings))
	}
}

// ErrorMap groups findings by field, keeping their order within a field.
func ErrorMap(findings []Finding) map[string][]string {
	out := make(map[string][]string, len(findings))
	for _, f := range findings {
		out[f.Field] = append(out[f.Field], f.Message)
	}
	return out
}
