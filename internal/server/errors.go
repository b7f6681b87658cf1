package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/curator/internal/store"
	"github.com/jonathan/curator/internal/types"
	"github.com/jonathan/curator/internal/worker"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrAgentDisabled indicates a manual run was requested for a disabled agent
type ErrAgentDisabled struct {
	Name string
}

func (e *ErrAgentDisabled) Error() string {
	return fmt.Sprintf("agent is disabled: %s", e.Name)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var validationErr *ErrValidation
	var modelErr *types.ValidationError
	var disabledErr *ErrAgentDisabled
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.As(err, &validationErr), errors.As(err, &modelErr):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrDuplicate), errors.As(err, &disabledErr):
		return http.StatusConflict
	case errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
