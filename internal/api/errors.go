// internal/api/errors.go
package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"msad-registration/internal/common/errors"
	"msad-registration/internal/registration/draft"
	"msad-registration/internal/registration/submission"
	"msad-registration/internal/registration/upload"
)

// submissionFailedMessage replaces the store's error text in responses.
const submissionFailedMessage = "We could not submit your application. Please try again in a few minutes."

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type validationBody struct {
	Step   int               `json:"step"`
	Errors map[string]string `json:"errors"`
}

type uploadErrorBody struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeError maps a domain error onto its status and body. Unknown errors
// are logged and reported as 500 without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		valErr *submission.ValidationError
		subErr *submission.SubmissionError
		upErr  *upload.UploadError
	)
	switch {
	case stderrors.As(err, &valErr):
		writeJSON(w, http.StatusUnprocessableEntity, validationBody{Step: valErr.Step, Errors: valErr.Fields})

	case stderrors.As(err, &upErr):
		if !upErr.Rejected {
			s.logger.Warn("upload failed", map[string]interface{}{"field": upErr.Field, "error": upErr.Err})
		}
		writeJSON(w, http.StatusBadRequest, uploadErrorBody{Field: upErr.Field, Message: upErr.Message})

	case stderrors.As(err, &subErr):
		s.logger.Error("submission rejected by store", map[string]interface{}{
			"path":  r.URL.Path,
			"error": subErr.Message,
		})
		writeJSON(w, http.StatusBadGateway, map[string]string{"message": submissionFailedMessage})

	case stderrors.Is(err, submission.ErrSubmissionInProgress):
		writeJSON(w, http.StatusConflict, errorBody{
			Error: "A submission for this registration is already in progress",
			Code:  string(errors.ErrCodeSubmissionInProgress),
		})

	case stderrors.Is(err, submission.ErrIdentityRequired):
		writeJSON(w, http.StatusUnauthorized, errorBody{
			Error: "Sign in to submit an application",
			Code:  string(errors.ErrCodeIdentityRequired),
		})

	case stderrors.Is(err, draft.ErrDraftStoreFailed):
		s.logger.Error("draft store failed", map[string]interface{}{"path": r.URL.Path, "error": err})
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Error: "Your progress could not be saved. Please try again.",
			Code:  string(errors.ErrCodeDraftStoreFailed),
		})

	default:
		if stdErr, ok := errors.AsStandardError(err); ok {
			s.writeStandardError(w, r, stdErr)
			return
		}
		s.logger.Error("unhandled error", map[string]interface{}{"path": r.URL.Path, "error": err})
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal server error"})
	}
}

func (s *Server) writeStandardError(w http.ResponseWriter, r *http.Request, stdErr *errors.StandardError) {
	status := http.StatusInternalServerError
	switch stdErr.Code {
	case errors.ErrCodeInvalidToken, errors.ErrCodeAuthentication, errors.ErrCodeIdentityRequired:
		status = http.StatusUnauthorized
	case errors.ErrCodeBusinessRule:
		status = http.StatusBadRequest
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeExternalService, errors.ErrCodeTimeout:
		status = http.StatusBadGateway
	}
	if status >= 500 {
		s.logger.Error("request error", map[string]interface{}{
			"path":    r.URL.Path,
			"code":    string(stdErr.Code),
			"details": stdErr.Details,
		})
	}
	writeJSON(w, status, errorBody{Error: stdErr.Message, Code: string(stdErr.Code)})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: string(errors.ErrCodeBusinessRule)})
}
