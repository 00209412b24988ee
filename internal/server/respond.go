package server

import (
	"encoding/json"
	"errors"
	"net/http"

	ewberrors "github.com/IntelCompH2020/ewbsearch/internal/errors"
)

type errorBody struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Retryable  bool              `json:"retryable,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// respondError maps a service error to its HTTP status and a structured
// body. Unknown error types surface as 500 internals.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	var svcErr *ewberrors.ServiceError
	if !errors.As(err, &svcErr) {
		svcErr = ewberrors.InternalError("unexpected error", err)
	}

	s.logger.Error("request failed",
		"code", svcErr.Code, "message", svcErr.Message, "cause", svcErr.Cause)
	s.respond(w, svcErr.HTTPStatus(), map[string]errorBody{"error": {
		Code:       svcErr.Code,
		Message:    svcErr.Message,
		Details:    svcErr.Details,
		Suggestion: svcErr.Suggestion,
		Retryable:  svcErr.Retryable,
	}})
}

// badRequest reports a malformed or missing parameter by name.
func (s *Server) badRequest(w http.ResponseWriter, param, reason string) {
	err := ewberrors.Newf(ewberrors.ErrCodeMissingParameter,
		"parameter %s: %s", param, reason)
	s.respondError(w, err)
}

func decodeBody[T any](r *http.Request) (T, error) {
	var body T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return body, ewberrors.New(ewberrors.ErrCodeInvalidInput,
			"request body is not valid JSON", err)
	}
	return body, nil
}
