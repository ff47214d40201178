// internal/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"msad-registration/internal/common/metrics"
	"msad-registration/internal/models"
	"msad-registration/internal/registration/submission"
	"msad-registration/internal/registration/upload"
	"msad-registration/internal/registration/validator"
	"msad-registration/internal/registration/wizard"

	"github.com/google/uuid"
)

const (
	maxMultipartMemory = 8 << 20
	// multipartOverhead covers the part headers and the form boundary.
	multipartOverhead = 64 << 10
)

type sessionResponse struct {
	SessionID  string `json:"sessionId"`
	Step       int    `json:"step"`
	TotalSteps int    `json:"totalSteps"`
}

type draftResponse struct {
	SessionID string           `json:"sessionId"`
	Draft     models.FormDraft `json:"draft"`
	// Ignored lists submitted keys the service owns, such as age and file URLs.
	Ignored []string `json:"ignored,omitempty"`
}

type stepRequest struct {
	Step int `json:"step"`
}

type stepResponse struct {
	Step       int               `json:"step"`
	TotalSteps int               `json:"totalSteps"`
	Advanced   bool              `json:"advanced"`
	Derived    map[string]string `json:"derived,omitempty"`
}

type fieldResponse struct {
	Field string `json:"field"`
	validator.Result
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID:  uuid.NewString(),
		Step:       1,
		TotalSteps: len(s.deps.Steps),
	})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	writeJSON(w, http.StatusOK, draftResponse{SessionID: id, Draft: s.deps.Drafts.Load(r.Context(), id)})
}

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body struct {
		Fields map[string]interface{} `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "Request body must be a JSON object with a fields map")
		return
	}

	d := s.deps.Drafts.Load(r.Context(), id)
	ignored := d.MergeEditable(body.Fields)
	if len(ignored) > 0 {
		s.logger.Warn("ignoring server-owned draft fields", map[string]interface{}{
			"sessionId": id,
			"fields":    ignored,
		})
	}
	if err := s.deps.Drafts.Save(r.Context(), id, d); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draftResponse{SessionID: id, Draft: d, Ignored: ignored})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Drafts.Clear(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleValidateField checks one field. A value in the body is checked in
// place of the stored one and is not saved.
func (s *Server) handleValidateField(w http.ResponseWriter, r *http.Request) {
	id, field := r.PathValue("id"), r.PathValue("field")

	var body struct {
		Value *string `json:"value"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			badRequest(w, "Request body must be a JSON object")
			return
		}
	}

	d := s.deps.Drafts.Load(r.Context(), id)
	if body.Value != nil {
		d.Set(field, *body.Value)
	}
	res := wizard.New(s.deps.Steps).ValidateField(field, d)
	writeJSON(w, http.StatusOK, fieldResponse{Field: field, Result: res})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	nav, ok := s.navigator(w, r)
	if !ok {
		return
	}
	from := nav.Current()

	d := s.deps.Drafts.Load(r.Context(), id)
	out := nav.Next(d)

	if len(out.Derived) > 0 {
		if err := s.deps.Drafts.Save(r.Context(), id, d); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	step := strconv.Itoa(from)
	if !out.Valid() {
		metrics.RegistrationStepTransitions.WithLabelValues(step, "invalid").Inc()
		writeJSON(w, http.StatusUnprocessableEntity, validationBody{Step: out.Step, Errors: out.Errors})
		return
	}
	outcome := "advanced"
	if !out.Advanced {
		outcome = "final"
	}
	metrics.RegistrationStepTransitions.WithLabelValues(step, outcome).Inc()

	writeJSON(w, http.StatusOK, stepResponse{
		Step:       out.Step,
		TotalSteps: nav.Total(),
		Advanced:   out.Advanced,
		Derived:    out.Derived,
	})
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	nav, ok := s.navigator(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stepResponse{Step: nav.Previous(), TotalSteps: nav.Total()})
}

// navigator builds a Navigator on the step the client reports.
func (s *Server) navigator(w http.ResponseWriter, r *http.Request) (*wizard.Navigator, bool) {
	var body stepRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "Request body must be a JSON object with a step")
		return nil, false
	}
	nav, err := wizard.New(s.deps.Steps).WithStep(body.Step)
	if err != nil {
		badRequest(w, err.Error())
		return nil, false
	}
	return nav, true
}

// handleUpload stores one file for a wizard file field. The bucket follows
// from the field; clients cannot choose it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id, field := r.PathValue("id"), r.PathValue("field")

	class, ok := upload.ClassForField(field)
	if !ok {
		s.writeError(w, r, &upload.UploadError{Field: field, Message: "This field does not take a file", Rejected: true})
		return
	}

	limit := s.maxUploadBytes + multipartOverhead
	tooLarge := &upload.UploadError{Field: field, Message: upload.SizeMessage(s.maxUploadBytes), Rejected: true}
	if r.ContentLength > limit {
		s.writeError(w, r, tooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, r, tooLarge)
			return
		}
		badRequest(w, "Request must be multipart/form-data with a file part")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "Missing file part")
		return
	}
	defer file.Close()

	asset, err := s.deps.Uploader.Upload(r.Context(), upload.File{
		Field:       field,
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	}, upload.WithBucket(class))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	d := s.deps.Drafts.Load(r.Context(), id)
	upload.Attach(d, asset)
	if err := s.deps.Drafts.Save(r.Context(), id, d); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	userID, err := s.identify(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Submitter.Submit(r.Context(), submission.Request{
		SessionID: r.PathValue("id"),
		UserID:    userID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleProvinces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"provinces": validator.Provinces()})
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	province := r.PathValue("province")
	cities := validator.CitiesFor(province)
	if cities == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Unknown province " + province})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"province": province, "cities": cities})
}

// identify returns the caller's user id, nil for anonymous callers or when
// no identity provider is configured.
func (s *Server) identify(r *http.Request) (*string, error) {
	if s.deps.Identity == nil {
		return nil, nil
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return nil, nil
	}
	id, err := s.deps.Identity.Identify(r.Context(), header)
	if err != nil {
		return nil, err
	}
	return id, nil
}
