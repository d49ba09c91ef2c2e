package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/patternwatch/internal/adapters/lock"
	"github.com/okian/patternwatch/internal/domain/types"
	"github.com/okian/patternwatch/pkg/logger"
)

// Runner executes one detection run.
type Runner interface {
	RunDetection(ctx context.Context) (types.Report, error)
}

// DetectHandler handles the detect-patterns trigger.
type DetectHandler struct {
	runner Runner
	auth   *Authenticator
	log    logger.Logger
}

// NewDetectHandler creates a new detect handler.
func NewDetectHandler(runner Runner, auth *Authenticator, log logger.Logger) *DetectHandler {
	return &DetectHandler{runner: runner, auth: auth, log: log}
}

// HandleDetect handles POST and OPTIONS on /detect-patterns.
func (h *DetectHandler) HandleDetect(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w.Header())

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		writeError(w, http.StatusMethodNotAllowed, ErrMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if err := h.auth.Authenticate(r); err != nil {
		h.log.Warn(ctx, "rejected detect-patterns request", logger.Error(err))
		writeError(w, http.StatusUnauthorized, ErrUnauthorized)
		return
	}

	report, err := h.runner.RunDetection(ctx)
	switch {
	case errors.Is(err, lock.ErrLocked):
		writeError(w, http.StatusConflict, ErrAlreadyRunning)
		return
	case err != nil:
		h.log.Error(ctx, "detect-patterns failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func setCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, types.NewErrorResponse(err.Error()))
}
