package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/couchcryptid/food-risk-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/food-risk-etl/internal/domain"
	"github.com/couchcryptid/food-risk-etl/internal/loader"
	"github.com/couchcryptid/food-risk-etl/internal/overrides"
	"github.com/couchcryptid/food-risk-etl/internal/pipeline"
	"github.com/couchcryptid/food-risk-etl/internal/store"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

const (
	overridesField  = "overrides"
	defaultRunLimit = 20
	maxRunLimit     = 200
)

// requestError marks a client mistake that maps to 400.
type requestError struct{ err error }

func (e requestError) Error() string { return e.err.Error() }
func (e requestError) Unwrap() error { return e.err }

func badRequest(format string, args ...any) error {
	return requestError{err: fmt.Errorf(format, args...)}
}

// handleScore scores a CSV body with the requested variant and banding. It
// answers with the scored CSV, or with the summary and rows as JSON when the
// client accepts application/json.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes))
	if err != nil {
		s.writeError(w, badRequest("read body: %w", err))
		return
	}
	table, err := csvfile.Parse(body)
	if err != nil {
		s.writeError(w, badRequest("parse csv: %w", err))
		return
	}

	q := r.URL.Query()
	name := q.Get("variant")
	if name == "" {
		name = s.deps.DefaultVariant
	}
	variant, err := domain.ParseVariant(name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	banding := q.Get("banding")
	if banding == "" {
		banding = s.deps.DefaultBanding
	}

	res, err := s.deps.Pipeline.ScoreRows(r.Context(), pipeline.Request{
		Table:   table,
		Variant: variant,
		Banding: banding,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("X-Run-ID", res.RunID)
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		sharedobs.WriteJSON(w, http.StatusOK, newResultResponse(res))
		return
	}
	s.writeCSV(w, "scored.csv", res.Table)
}

func (s *Server) handleCounties(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runCounties(w, r)
	if !ok {
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, newResultResponse(res))
}

func (s *Server) handleCountiesCSV(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runCounties(w, r)
	if !ok {
		return
	}
	s.writeCSV(w, "county_latest_scored.csv", res.Table)
}

func (s *Server) handleCountiesPDF(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runCounties(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := s.deps.Renderer.RenderPDF(&buf, res); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="food_risk_brief.pdf"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck // client gone
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runCounties(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := s.deps.Renderer.RenderDashboard(&buf, res); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck // client gone
}

// runCounties parses the optional multipart uploads and runs a county
// scoring pass. It writes the error response itself and reports whether the
// caller should continue.
func (s *Server) runCounties(w http.ResponseWriter, r *http.Request) (*pipeline.Result, bool) {
	req, err := s.countyRequest(w, r)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	res, err := s.deps.Pipeline.ScoreCounties(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	w.Header().Set("X-Run-ID", res.RunID)
	return res, true
}

// countyRequest maps multipart file fields to uploaded tables. A field is
// matched by its name or its file name ("weekly" or "county_weekly.csv");
// the "overrides" field carries a YAML overrides document.
func (s *Server) countyRequest(w http.ResponseWriter, r *http.Request) (pipeline.CountyRequest, error) {
	req := pipeline.CountyRequest{Banding: r.URL.Query().Get("banding"), Uploads: loader.Uploads{}}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return req, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.deps.MaxUploadBytes); err != nil {
		return req, badRequest("parse upload: %w", err)
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // temp files

	for field, files := range r.MultipartForm.File {
		if len(files) == 0 {
			continue
		}
		data, err := readPart(files[0])
		if err != nil {
			return req, badRequest("read upload %s: %w", field, err)
		}
		if field == overridesField {
			req.Overrides = overrides.Load(data, s.deps.OverridesPath, s.logger).Overrides
			continue
		}
		name, err := loader.ParseTableName(field)
		if err != nil {
			if name, err = loader.ParseTableName(files[0].Filename); err != nil {
				return req, badRequest("upload field %q: %w", field, err)
			}
		}
		req.Uploads[name] = data
	}
	return req, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// submissionRequest is the JSON body of POST /v1/submissions. An empty date
// means today.
type submissionRequest struct {
	Worker       string  `json:"worker"`
	Region       string  `json:"region"`
	Date         string  `json:"date"`
	FRL          float64 `json:"frl"`
	Attendance   float64 `json:"attendance"`
	Unemployment float64 `json:"unemployment"`
	Evictions    int     `json:"evictions"`
	FoodScarcity int     `json:"food_scarcity"`
	Shutoffs     int     `json:"shutoffs"`
	Notes        string  `json:"notes"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body submissionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, badRequest("decode submission: %w", err))
		return
	}

	date := domain.Now()
	if strings.TrimSpace(body.Date) != "" {
		d, err := domain.ParseDate(body.Date)
		if err != nil {
			s.writeError(w, badRequest("date: %w", err))
			return
		}
		date = d
	}

	sub := store.Submission{
		Worker:       body.Worker,
		Region:       body.Region,
		Date:         date,
		FRL:          body.FRL,
		Attendance:   body.Attendance,
		Unemployment: body.Unemployment,
		Evictions:    body.Evictions,
		FoodScarcity: body.FoodScarcity,
		Shutoffs:     body.Shutoffs,
		Notes:        body.Notes,
	}
	if err := s.deps.Submissions.Append(sub); err != nil {
		s.writeError(w, err)
		return
	}
	s.deps.Metrics.Submissions.Inc()
	sharedobs.WriteJSON(w, http.StatusCreated, map[string]string{"status": "saved"})
}

func (s *Server) handleRegionCounts(w http.ResponseWriter, _ *http.Request) {
	counts, err := s.deps.Submissions.RegionCounts()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if counts == nil {
		counts = []store.RegionCount{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, counts)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs == nil {
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "run history is disabled"})
		return
	}
	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, badRequest("limit must be a positive integer"))
			return
		}
		limit = min(n, maxRunLimit)
	}
	runs, err := s.deps.Runs.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, runs)
}

func (s *Server) writeCSV(w http.ResponseWriter, filename string, t domain.Table) {
	data, err := csvfile.Bytes(t)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck // client gone
}

// writeError maps pipeline and request errors to status codes. Missing
// columns answer 422 with the list of absent columns.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		missing *domain.MissingColumnsError
		reqErr  requestError
	)
	switch {
	case errors.As(err, &missing):
		sharedobs.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":           err.Error(),
			"missing_columns": missing.Columns,
		})
	case errors.As(err, &reqErr),
		errors.Is(err, domain.ErrUnknownVariant),
		errors.Is(err, domain.ErrUnknownBanding),
		errors.Is(err, store.ErrInvalidSubmission):
		sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		s.logger.Error("request failed", "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
