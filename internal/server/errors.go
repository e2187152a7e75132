package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/interview-orchestrator/internal/interview"
)

// requestError is a malformed request body or parameter
type requestError struct {
	Message string
}

func (e *requestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Message)
}

// errorBody is the JSON shape of every error response
type errorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable,omitempty"`
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	switch errorKind(err) {
	case interview.KindNoQuestionsForRole:
		return http.StatusUnprocessableEntity
	case interview.KindSessionNotFound:
		return http.StatusNotFound
	case interview.KindSessionNotActive, interview.KindNoQuestionsRemain, interview.KindSessionNotCompleted:
		return http.StatusConflict
	case interview.KindGenerationFailure:
		return http.StatusBadGateway
	case interview.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorKind extends interview.Kind with request decoding and validator failures
func errorKind(err error) string {
	var (
		reqErr  *requestError
		invalid validator.ValidationErrors
	)
	if errors.As(err, &reqErr) || errors.As(err, &invalid) {
		return interview.KindValidation
	}
	return interview.Kind(err)
}

func newErrorBody(err error) errorBody {
	kind := errorKind(err)
	body := errorBody{Error: err.Error(), Kind: kind}
	if kind == interview.KindInternal {
		body.Error = "internal error"
	}
	var gen *interview.GenerationError
	if errors.As(err, &gen) {
		body.Retryable = gen.Retryable()
	}
	return body
}
