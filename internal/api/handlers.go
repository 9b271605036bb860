package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/miradorstack/benford-lab/internal/catalog"
	"github.com/miradorstack/benford-lab/internal/examples"
	"github.com/miradorstack/benford-lab/internal/models"
	"github.com/miradorstack/benford-lab/internal/security"
	"github.com/miradorstack/benford-lab/internal/services"
	"github.com/miradorstack/benford-lab/internal/session"
	"github.com/miradorstack/benford-lab/internal/storage"
	"github.com/miradorstack/benford-lab/internal/utils"
)

// Messages queued as flashes. Form handlers redirect to the index after a failure.
const (
	msgBadCSRF        = "Invalid or missing CSRF token. Please try again."
	msgNoFilePart     = "No file part"
	msgNoSelectedFile = "No selected file"
	msgBadType        = "Invalid file type. Please upload a CSV file."
	msgNotCSV         = "File does not appear to be a valid CSV file."
	msgColumnRequired = "Column name is required"
	msgMissingFields  = "Missing filename or column"
	msgBadFilename    = "Invalid filename provided."
	msgFileNotFound   = "Uploaded file not found. Please upload again."
	msgTooLarge       = "File is too large. Please upload a smaller file."
	msgReadError      = "Error reading CSV file."
	msgUnknownExample = "Unknown example dataset."
	msgNeedCatalog    = "Please connect your Kaggle account first."
	msgCatalogLimit   = "Kaggle request limit reached. Please try again later."
	msgCatalogFields  = "Dataset reference and file name are required."
)

// multipartMemory is the part of a multipart body kept in memory before spilling to disk.
const multipartMemory = 8 << 20

type handlers struct {
	logger         *slog.Logger
	sessions       sessions.Store
	csrf           *security.CSRFGuard
	intake         *storage.Intake
	plots          *storage.Root
	reports        *storage.Root
	examples       *examples.Catalog
	analysis       *services.AnalysisService
	catalog        *services.CatalogService
	maxPreviewRows int
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *handlers) save(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := sess.Save(r, w); err != nil {
		h.logger.Error("failed to save session", slog.Any("error", err))
	}
}

// fail queues a flash and redirects to the index.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, sess *session.Session, category, msg string) {
	sess.AddFlash(category, msg)
	h.save(w, r, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// form parses the request body and checks the CSRF token. On failure the response is
// already written.
func (h *handlers) form(w http.ResponseWriter, r *http.Request, sess *session.Session) bool {
	err := r.ParseMultipartForm(multipartMemory)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, sess, session.FlashError, msgTooLarge)
			return false
		}
		h.logger.Warn("failed to parse form", slog.String("path", r.URL.Path), slog.Any("error", err))
		h.fail(w, r, sess, session.FlashError, msgReadError)
		return false
	}
	if err := h.csrf.Check(sess, r.PostFormValue("csrf_token")); err != nil {
		h.logger.Warn("request rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
		h.fail(w, r, sess, session.FlashWarning, msgBadCSRF)
		return false
	}
	return true
}

// openFile returns the submitted "file" part.
func (h *handlers) openFile(w http.ResponseWriter, r *http.Request, sess *session.Session) (multipart.File, *multipart.FileHeader, bool) {
	file, header, err := r.FormFile("file")
	if err != nil {
		msg := msgNoFilePart
		if r.MultipartForm != nil {
			// An empty file input arrives as a plain value.
			if _, ok := r.MultipartForm.Value["file"]; ok {
				msg = msgNoSelectedFile
			}
		}
		h.fail(w, r, sess, session.FlashWarning, msg)
		return nil, nil, false
	}
	if strings.TrimSpace(header.Filename) == "" {
		_ = file.Close()
		h.fail(w, r, sess, session.FlashWarning, msgNoSelectedFile)
		return nil, nil, false
	}
	return file, header, true
}

func (h *handlers) accept(w http.ResponseWriter, r *http.Request, sess *session.Session, file multipart.File, header *multipart.FileHeader) (storage.Upload, bool) {
	defer file.Close()
	upload, err := h.intake.Accept(file, header.Filename)
	if err == nil {
		return upload, true
	}

	var msg string
	switch {
	case errors.Is(err, storage.ErrUnsupportedType):
		msg = msgBadType
	case errors.Is(err, storage.ErrNotCSV):
		msg = msgNotCSV
	case errors.Is(err, storage.ErrTooLarge):
		msg = msgTooLarge
	case errors.Is(err, storage.ErrInvalidPath):
		msg = msgBadFilename
	default:
		h.logger.Error("failed to store upload", slog.Any("error", err))
		msg = msgReadError
	}
	h.logger.Warn("upload rejected", slog.String("file", storage.SanitizeFilename(header.Filename)), slog.Any("error", err))
	h.fail(w, r, sess, session.FlashError, msg)
	return storage.Upload{}, false
}

func (h *handlers) runAnalysis(w http.ResponseWriter, r *http.Request, sess *session.Session, req models.AnalysisRequest) {
	resp, err := h.analysis.Analyze(r.Context(), req)
	if err != nil {
		h.fail(w, r, sess, session.FlashError, utils.UserMessage(err, services.MsgUnexpected))
		return
	}
	h.save(w, r, sess)
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	sess := session.Load(h.sessions, r)
	token, err := h.csrf.Issue(sess)
	if err != nil {
		h.logger.Error("failed to issue csrf token", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: services.MsgUnexpected})
		return
	}
	resp := models.IndexResponse{
		CSRFToken: token,
		Flashes:   sess.Flashes(),
		Examples:  []examples.Dataset{},
	}
	if h.examples != nil {
		resp.Examples = h.examples.List()
	}
	h.save(w, r, sess)
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) upload(w http.ResponseWriter, r *http.Request) {
	sess := session.Load(h.sessions, r)
	if !h.form(w, r, sess) {
		return
	}
	file, header, ok := h.openFile(w, r, sess)
	if !ok {
		return
	}
	upload, ok := h.accept(w, r, sess, file, header)
	if !ok {
		return
	}
	// The stored file stays available to /analyze.
	column := strings.TrimSpace(r.PostFormValue("column"))
	if column == "" {
		h.fail(w, r, sess, session.FlashWarning, msgColumnRequired)
		return
	}
	h.runAnalysis(w, r, sess, models.AnalysisRequest{Path: upload.Path, Column: column})
}

func (h *handlers) preview(w http.ResponseWriter, r *http.Request) {
	sess := session.Load(h.sessions, r)
	if !h.form(w, r, sess) {
		return
	}
	file, header, ok := h.openFile(w, r, sess)
	if !ok {
		return
	}
	upload, ok := h.accept(w, r, sess, file, header)
	if !ok {
		return
	}
	resp, err := services.Preview(upload, h.maxPreviewRows)
	if err != nil {
		if rmErr := os.Remove(upload.Path); rmErr != nil {
			h.logger.Warn("failed to remove rejected upload", slog.String("file", upload.Name), slog.Any("error", rmErr))
		}
		h.fail(w, r, sess, session.FlashError, utils.UserMessage(err, msgReadError))
		return
	}
	h.save(w, r, sess)
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) analyze(w http.ResponseWriter, r *http.Request) {
	sess := session.Load(h.sessions, r)
	if !h.form(w, r, sess) {
		return
	}
	filename := strings.TrimSpace(r.PostFormValue("filename"))
	column := strings.TrimSpace(r.PostFormValue("column"))
	if filename == "" || column == "" {
		h.fail(w, r, sess, session.FlashWarning, msgMissingFields)
		return
	}
	_, path, err := h.intake.Root().Resolve(filename)
	if err != nil {
		h.logger.Warn("rejected analysis filename", slog.Any("error", err))
		h.fail(w, r, sess, session.FlashError, msgBadFilename)
		return
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		h.fail(w, r, sess, session.FlashError, msgFileNotFound)
		return
	}
	h.runAnalysis(w, r, sess, models.AnalysisRequest{Path: path, Column: column})
}

func (h *handlers) results(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	plot, report := query.Get("plot"), query.Get("report")
	if plot == "" && report == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "No results requested."})
		return
	}

	var resp models.ResultsResponse
	for _, item := range []struct {
		raw    string
		root   *storage.Root
		prefix string
		url    *string
	}{
		{plot, h.plots, services.PlotURLPrefix, &resp.PlotURL},
		{report, h.reports, services.ReportURLPrefix, &resp.ReportURL},
	} {
		if item.raw == "" {
			continue
		}
		name, path, err := item.root.Resolve(item.raw)
		if err != nil || name != item.raw {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid result file name."})
			return
		}
		if _, err := os.Stat(path); err != nil {
			writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Result not found. It may have expired."})
			return
		}
		*item.url = item.prefix + name
	}
	writeJSON(w, http.StatusOK, resp)
}

// serveFrom serves generated artefacts from root. Anything outside it is a 404.
func (h *handlers) serveFrom(root *storage.Root) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := root.Open(chi.URLParam(r, "name"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	}
}

func (h *handlers) listExamples(w http.ResponseWriter, _ *http.Request) {
	list := []examples.Dataset{}
	if h.examples != nil {
		list = h.examples.List()
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handlers) analyzeExample(w http.ResponseWriter, r *http.Request) {
	sess := session.Load(h.sessions, r)
	if !h.form(w, r, sess) {
		return
	}
	if h.examples == nil {
		h.fail(w, r, sess, session.FlashWarning, msgUnknownExample)
		return
	}
	d, err := h.examples.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, sess, session.FlashWarning, msgUnknownExample)
		return
	}
	path, err := h.examples.Path(d)
	if err != nil {
		h.logger.Error("example data file unavailable", slog.String("example", d.ID), slog.Any("error", err))
		h.fail(w, r, sess, session.FlashError, services.MsgUnexpected)
		return
	}
	h.runAnalysis(w, r, sess, models.AnalysisRequest{
		Path:        path,
		Column:      d.Column,
		Label:       d.Name,
		Expectation: d.Expectation,
	})
}

// catalogMessage turns a catalog failure into a flash message.
func (h *handlers) catalogMessage(err error) string {
	var dataErr *catalog.ExternalDataError
	switch {
	case errors.As(err, &dataErr) && dataErr.Msg != "":
		return dataErr.Msg
	case errors.Is(err, catalog.ErrAuth):
		return msgNeedCatalog
	case errors.Is(err, catalog.ErrRateLimit):
		return msgCatalogLimit
	}
	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		h.logger.Error("catalog request failed", slog.Any("error", err))
	}
	return utils.UserMessage(err, services.MsgUnexpected)
}

func (h *handlers) catalogStatus(w http.ResponseWriter, r *http.Request) {
	sess := session.Load(h.sessions, r)
	status := h.catalog.Status(sess)
	h.save(w, r, sess)
	writeJSON(w, http.StatusOK, status)
}

func (h *handlers) catalogConnect(w http.ResponseWriter, r *http.Request) {
	sess := session.Load(h.sessions, r)
	if !h.form(w, r, sess) {
		return
	}
	creds := catalog.Credentials{
		Username: r.PostFormValue("username"),
		Key:      r.PostFormValue("key"),
	}
	if err := h.catalog.Connect(r.Context(), sess, creds); err != nil {
		h.fail(w, r, sess, session.FlashError, h.catalogMessage(err))
		return
	}
	sess.AddFlash(session.FlashSuccess, "Kaggle credentials verified for this session.")
	h.save(w, r, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *handlers) catalogDisconnect(w http.ResponseWriter, r *http.Request) {
	sess := session.Load(h.sessions, r)
	if !h.form(w, r, sess) {
		return
	}
	h.catalog.Disconnect(sess)
	sess.AddFlash(session.FlashInfo, "Kaggle credentials cleared.")
	h.save(w, r, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *handlers) catalogSearch(w http.ResponseWriter, r *http.Request) {
	sess := session.Load(h.sessions, r)
	if !h.form(w, r, sess) {
		return
	}
	resp, err := h.catalog.Search(r.Context(), sess, r.PostFormValue("query"))
	if err != nil {
		h.fail(w, r, sess, session.FlashError, h.catalogMessage(err))
		return
	}
	h.save(w, r, sess)
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) catalogDownload(w http.ResponseWriter, r *http.Request) {
	sess := session.Load(h.sessions, r)
	if !h.form(w, r, sess) {
		return
	}
	req := models.CatalogDownloadRequest{
		Ref:  strings.TrimSpace(r.PostFormValue("ref")),
		File: strings.TrimSpace(r.PostFormValue("file")),
	}
	if req.Ref == "" || req.File == "" {
		h.fail(w, r, sess, session.FlashWarning, msgCatalogFields)
		return
	}
	resp, err := h.catalog.Download(r.Context(), sess, req)
	if err != nil {
		h.fail(w, r, sess, session.FlashError, h.catalogMessage(err))
		return
	}
	h.save(w, r, sess)
	writeJSON(w, http.StatusOK, resp)
}
