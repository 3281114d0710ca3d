package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"mfg-report-go/internal/actionable"
	"mfg-report-go/internal/config"
	"mfg-report-go/internal/dataset"
	"mfg-report-go/internal/export"
	"mfg-report-go/internal/logger"
	"mfg-report-go/internal/period"
	"mfg-report-go/internal/pivot"
	"mfg-report-go/internal/processor"
	"mfg-report-go/internal/store"
)

type Handler struct {
	Store     store.Store
	Sessions  *config.Sessions
	Processor *processor.Processor
	Uploads   *rate.Limiter
	Log       *logger.Logger
	MaxUpload int64
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/datasets", h.ListDatasets)
		r.Get("/datasets/{name}", h.GetDataset)
		r.Post("/datasets/{name}", h.UploadDataset)
		r.Get("/datasets/{name}/summary", h.DatasetSummary)

		r.Post("/pivot", h.Pivot)
		r.Get("/dashboard", h.Dashboard)
		r.Get("/issues", h.Issues)

		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.PutSettings)
		r.Get("/profiles", h.Profiles)
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

// ============================================================================
// Datasets
// ============================================================================

type datasetInfo struct {
	Name string `json:"name"`
	Rows int    `json:"rows"`
}

func (h *Handler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	var out []datasetInfo
	for _, name := range store.Datasets() {
		recs, err := h.Store.GetAll(r.Context(), name)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		out = append(out, datasetInfo{Name: name, Rows: len(recs)})
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Store.GetAll(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, recs)
}

func (h *Handler) DatasetSummary(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Store.GetAll(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, dataset.Summarize(recs))
}

type uploadResult struct {
	Dataset string          `json:"dataset"`
	Mode    string          `json:"mode"`
	Rows    int             `json:"rows"`
	Summary dataset.Summary `json:"summary"`
}

// UploadDataset accepts a multipart "file" field, or a raw body named by the
// filename query parameter. mode=month replaces only the months present in
// the upload; the default replaces the whole dataset.
func (h *Handler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	log := h.Log.WithRequest(r).WithField("handler", "upload")
	if h.Uploads != nil && !h.Uploads.Allow() {
		log.Warn("upload rate limited")
		http.Error(w, "too many uploads, retry shortly", http.StatusTooManyRequests)
		return
	}
	name := chi.URLParam(r, "name")
	if err := store.CheckDataset(name); err != nil {
		h.fail(w, r, err)
		return
	}
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "replace"
	}
	if mode != "replace" && mode != "month" {
		http.Error(w, fmt.Sprintf("unknown mode %q", mode), http.StatusBadRequest)
		return
	}
	if h.MaxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUpload)
	}

	filename, body, err := uploadBody(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer body.Close()

	recs, err := dataset.Parse(filename, body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if mode == "month" {
		err = h.Store.ReplaceMonths(r.Context(), name, recs)
	} else {
		err = h.Store.ReplaceAll(r.Context(), name, recs)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	log.WithField("dataset", name).WithField("mode", mode).WithField("rows", len(recs)).Info("dataset uploaded")
	h.writeJSON(w, r, http.StatusOK, uploadResult{Dataset: name, Mode: mode, Rows: len(recs), Summary: dataset.Summarize(recs)})
}

var errBadUpload = errors.New("bad upload")

func uploadBody(r *http.Request) (string, io.ReadCloser, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			return "", nil, fmt.Errorf("%w: %w", errBadUpload, err)
		}
		return hdr.Filename, f, nil
	}
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		return "", nil, fmt.Errorf("%w: filename query parameter is required for raw uploads", errBadUpload)
	}
	return filename, r.Body, nil
}

// ============================================================================
// Reports
// ============================================================================

type pivotRequest struct {
	Dataset string     `json:"dataset"`
	Spec    pivot.Spec `json:"spec"`
	Period  string     `json:"period"`
	Format  string     `json:"format"`
}

func (h *Handler) Pivot(w http.ResponseWriter, r *http.Request) {
	var req pivotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	per, err := period.ParsePeriod(req.Period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	snap, err := processor.LoadSnapshot(r.Context(), h.Store)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Processor.Pivot(snap, req.Dataset, req.Spec, per)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	format := req.Format
	if f := r.URL.Query().Get("format"); f != "" {
		format = f
	}
	if format == "" || format == "json" {
		h.writeJSON(w, r, http.StatusOK, res)
		return
	}
	h.writeTable(w, r, format, "pivot", res.Table("Pivot_"+req.Dataset))
}

// dashboard builds the dashboard for the saved session, with an optional
// period query parameter overriding the saved period.
func (h *Handler) dashboard(r *http.Request) (processor.Dashboard, error) {
	sess, err := h.Sessions.Load(r.Context())
	if err != nil {
		return processor.Dashboard{}, err
	}
	if q := r.URL.Query().Get("period"); q != "" {
		if sess.Period, err = period.ParsePeriod(q); err != nil {
			return processor.Dashboard{}, err
		}
	}
	if q := r.URL.Query().Get("profile"); q != "" {
		sess.Profile = q
	}
	snap, err := processor.LoadSnapshot(r.Context(), h.Store)
	if err != nil {
		return processor.Dashboard{}, err
	}
	return h.Processor.Build(snap, sess)
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.dashboard(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if format := r.URL.Query().Get("format"); format != "" && format != "json" {
		h.writeTable(w, r, format, "oee", processor.GroupsTable(d))
		return
	}
	h.writeJSON(w, r, http.StatusOK, d)
}

func (h *Handler) Issues(w http.ResponseWriter, r *http.Request) {
	d, err := h.dashboard(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if format := r.URL.Query().Get("format"); format != "" && format != "json" {
		h.writeTable(w, r, format, "issues", processor.IssuesTable(d.Issues))
		return
	}
	h.writeJSON(w, r, http.StatusOK, d.Issues)
}

// ============================================================================
// Settings
// ============================================================================

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Load(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, sess)
}

func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var next config.Session
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	saved, err := h.Sessions.Save(r.Context(), next)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Log.WithRequest(r).WithField("version", saved.Version).Info("settings saved")
	h.writeJSON(w, r, http.StatusOK, saved)
}

type profilesResponse struct {
	Names    []string                      `json:"names"`
	Profiles map[string]actionable.Profile `json:"profiles"`
}

func (h *Handler) Profiles(w http.ResponseWriter, r *http.Request) {
	profiles := h.Sessions.Profiles()
	names := make([]string, 0, len(profiles)+1)
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	names = append(names, actionable.CustomProfile)
	h.writeJSON(w, r, http.StatusOK, profilesResponse{Names: names, Profiles: profiles})
}

// ============================================================================
// Responses
// ============================================================================

// writeJSON encodes v in full before the header is written; an encoding
// failure answers 500.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		h.Log.WithRequest(r).WithError(err).Error("failed to write response")
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		h.Log.WithRequest(r).WithError(err).Warn("failed to write response")
	}
}

func (h *Handler) writeTable(w http.ResponseWriter, r *http.Request, format, base string, t export.Table) {
	var err error
	switch strings.ToLower(format) {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, base))
		err = export.WriteCSV(w, t)
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, base))
		err = export.WriteXLSX(w, t)
	default:
		http.Error(w, fmt.Sprintf("unknown format %q", format), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.Log.WithRequest(r).WithError(err).Error("export failed")
	}
}

// fail maps domain errors to status codes and logs server-side failures.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, store.ErrUnknownDataset):
		status = http.StatusNotFound
	case errors.Is(err, config.ErrVersionConflict):
		status = http.StatusConflict
	case errors.As(err, &maxBytes):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, pivot.ErrTooManyFields),
		errors.Is(err, pivot.ErrUnknownAgg),
		errors.Is(err, actionable.ErrInvalidProfile),
		errors.Is(err, config.ErrUnknownProfile),
		errors.Is(err, period.ErrInvalidPeriod),
		errors.Is(err, dataset.ErrUnsupportedFormat),
		errors.Is(err, dataset.ErrNoHeader),
		errors.Is(err, dataset.ErrMalformed),
		errors.Is(err, errBadUpload):
		status = http.StatusBadRequest
	}
	log := h.Log.WithRequest(r).WithError(err).WithField("status", status)
	if status >= 500 {
		log.Error("request failed")
	} else {
		log.Warn("request rejected")
	}
	http.Error(w, err.Error(), status)
}
