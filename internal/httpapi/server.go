// Package httpapi hosts the intake engine over HTTP. The shell is
// interchangeable presentation plumbing: every rule about steps, gating,
// reconciliation, and report assembly lives in the packages it wires
// together.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/komorreby/PFR-AI-sub000/internal/archive"
	"github.com/komorreby/PFR-AI-sub000/internal/casefile"
	"github.com/komorreby/PFR-AI-sub000/internal/docscan"
	"github.com/komorreby/PFR-AI-sub000/internal/reconcile"
	"github.com/komorreby/PFR-AI-sub000/internal/refdata"
	"github.com/komorreby/PFR-AI-sub000/internal/report"
	"github.com/komorreby/PFR-AI-sub000/internal/wizard"
)

// Extractor is the slice of the document-extraction service the upload
// endpoint needs; the docscan HTTP client satisfies it.
type Extractor interface {
	Extract(ctx context.Context, req docscan.ExtractRequest) (docscan.ExtractionResult, error)
}

// PDFRenderer turns an assembled report into PDF bytes.
type PDFRenderer interface {
	Render(ctx context.Context, report string) ([]byte, error)
}

// Deps collects everything the server wires together. Archive and PDF are
// optional: without an archive finished reports live only in memory, and
// without a renderer the PDF endpoints answer 503.
type Deps struct {
	Sessions    *wizard.Store
	Submissions *report.Store
	Assembler   *report.Assembler
	Extractor   Extractor
	Catalog     *refdata.Catalog
	Archive     *archive.Store
	PDF         PDFRenderer
	UploadDir   string
}

type Server struct {
	deps   Deps
	tracer trace.Tracer
}

func NewServer(deps Deps) http.Handler {
	s := &Server{deps: deps, tracer: otel.Tracer("intake/httpapi")}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/cases", s.handleCreateCase)
	mux.HandleFunc("GET /v1/cases/{id}", s.handleGetCase)
	mux.HandleFunc("GET /v1/cases/{id}/steps", s.handleSteps)
	mux.HandleFunc("PUT /v1/cases/{id}/fields", s.handleSetFields)
	mux.HandleFunc("POST /v1/cases/{id}/advance", s.handleAdvance)
	mux.HandleFunc("POST /v1/cases/{id}/back", s.handleBack)
	mux.HandleFunc("POST /v1/cases/{id}/documents", s.handleUploadDocument)
	mux.HandleFunc("POST /v1/cases/{id}/submit", s.handleSubmit)
	mux.HandleFunc("GET /v1/submissions/{token}", s.handleSubmissionStatus)
	mux.HandleFunc("GET /v1/submissions/{token}/report", s.handleSubmissionReport)
	mux.HandleFunc("GET /v1/submissions/{token}/report.pdf", s.handleSubmissionReportPDF)
	mux.HandleFunc("GET /v1/case-types", s.handleCaseTypes)
	mux.HandleFunc("GET /v1/case-types/{id}/documents", s.handleCaseTypeDocuments)
	mux.HandleFunc("GET /v1/archive", s.handleArchiveList)
	mux.HandleFunc("GET /v1/archive/{token}", s.handleArchiveGet)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) *wizard.Session {
	sess := s.deps.Sessions.Get(r.PathValue("id"))
	if sess == nil {
		writeError(w, 404, "case not found")
	}
	return sess
}

func (s *Server) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	sess := s.deps.Sessions.Create()
	steps, active := sess.Steps()
	writeJSON(w, 201, map[string]any{
		"case_id": sess.ID,
		"steps":   steps,
		"active":  active,
	})
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	steps, active := sess.Steps()
	writeJSON(w, 200, map[string]any{
		"case_id": sess.ID,
		"model":   sess.Snapshot(),
		"steps":   steps,
		"active":  active,
		"uploads": sess.Uploads(),
	})
}

func (s *Server) handleSteps(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	steps, active := sess.Steps()
	stepID, required := sess.Requirements()
	writeJSON(w, 200, map[string]any{
		"steps":           steps,
		"active":          active,
		"current":         stepID,
		"required_fields": required,
	})
}

type fieldWrite struct {
	Path  string `json:"path"`
	Value string `json:"value"`
}

// handleSetFields applies field writes in request order, which matters for
// dependent pairs like name_changed before the prior-name block. The case
// type is a write like any other here, but routes through the session's
// selection logic so the step sequence re-resolves.
func (s *Server) handleSetFields(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var body struct {
		Fields []fieldWrite `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, 400, "invalid JSON body")
		return
	}
	if len(body.Fields) == 0 {
		writeError(w, 400, "fields list is required")
		return
	}

	var failed []casefile.FieldError
	for _, f := range body.Fields {
		if f.Path == casefile.FieldCaseType {
			sess.SelectCaseType(casefile.CaseType(f.Value))
			continue
		}
		if err := sess.SetField(f.Path, f.Value); err != nil {
			failed = append(failed, casefile.FieldError{Path: f.Path, Reason: err.Error()})
		}
	}
	steps, active := sess.Steps()
	writeJSON(w, 200, map[string]any{
		"failed": failed,
		"steps":  steps,
		"active": active,
	})
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, 200, sess.Advance())
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, 200, map[string]any{"step": sess.Back()})
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, 400, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		writeError(w, 400, "document file is required")
		return
	}
	defer file.Close()
	declared := r.FormValue("kind")

	path, err := s.saveUpload(sess.ID, header.Filename, file)
	if err != nil {
		log.Printf("httpapi: save upload case=%s: %v", sess.ID, err)
		writeError(w, 500, "failed to store uploaded file")
		return
	}

	stored, err := os.Open(path)
	if err != nil {
		writeError(w, 500, "failed to read stored file")
		return
	}
	defer stored.Close()

	ctx, span := s.tracer.Start(r.Context(), "document_extraction")
	defer span.End()

	res, err := s.deps.Extractor.Extract(ctx, docscan.ExtractRequest{
		Filename:     header.Filename,
		DeclaredKind: declared,
		File:         stored,
	})
	if err != nil {
		span.RecordError(err)
		log.Printf("httpapi: extraction transport failure case=%s file=%s: %v", sess.ID, header.Filename, err)
		writeError(w, 502, "extraction service unavailable")
		return
	}

	// Results reconcile in completion order, exactly once each; the
	// session lock serializes concurrent uploads.
	outcome, err := sess.ApplyExtraction(res)
	upload := wizard.Upload{
		ID:       filepath.Base(path),
		Filename: header.Filename,
		Path:     path,
		Declared: declared,
		Kind:     res.Kind,
		At:       time.Now(),
	}
	if err != nil {
		var ef *reconcile.ExtractionFailure
		if errors.As(err, &ef) {
			// One failed slot; everything already merged stays.
			upload.Status = wizard.UploadFailed
			upload.Error = ef.Message
			sess.RecordUpload(upload)
			writeJSON(w, 200, map[string]any{
				"status": wizard.UploadFailed,
				"kind":   ef.DocumentKind,
				"error":  ef.Message,
			})
			return
		}
		log.Printf("httpapi: reconcile case=%s file=%s: %v", sess.ID, header.Filename, err)
		writeError(w, 422, err.Error())
		return
	}
	upload.Status = wizard.UploadExtracted
	sess.RecordUpload(upload)
	writeJSON(w, 200, map[string]any{
		"status":  wizard.UploadExtracted,
		"outcome": outcome,
	})
}

func (s *Server) saveUpload(caseID, filename string, src io.Reader) (string, error) {
	if err := os.MkdirAll(s.deps.UploadDir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%d-%s", caseID, time.Now().UnixNano(), filepath.Base(filename))
	path := filepath.Join(s.deps.UploadDir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", err
	}
	return path, out.Close()
}

// handleSubmit snapshots the case and starts a submission in its own
// goroutine; the client polls the returned token. A second submit while one
// is in flight starts an independent submission over a fresh snapshot.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	snapshot := sess.Snapshot()
	identityDoc := sess.IdentityDocumentPath()
	sub := s.deps.Submissions.Create(sess.ID)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		progress := func(stage, message string) {
			log.Printf("httpapi: submission %s stage=%s %s", sub.Token, stage, message)
		}
		if err := s.deps.Assembler.Run(ctx, sub, snapshot, identityDoc, progress); err != nil {
			log.Printf("httpapi: submission %s failed at %s: %v", sub.Token, report.StageNameFromError(err), err)
			return
		}
		s.archiveArtifact(sub, snapshot)
	}()

	writeJSON(w, 202, map[string]any{
		"token":  sub.Token,
		"status": "submitted",
	})
}

func (s *Server) archiveArtifact(sub *report.Submission, snapshot casefile.CaseModel) {
	if s.deps.Archive == nil {
		return
	}
	text, filename, ok := sub.Artifact()
	if !ok {
		return
	}
	err := s.deps.Archive.Save(archive.Entry{
		Token:     sub.Token,
		CaseID:    sub.CaseID,
		CaseType:  string(snapshot.CaseType),
		Filename:  filename,
		Text:      text,
		CreatedAt: time.Now(),
	})
	if err != nil {
		log.Printf("httpapi: archive submission %s: %v", sub.Token, err)
	}
}

func (s *Server) submission(w http.ResponseWriter, r *http.Request) *report.Submission {
	sub := s.deps.Submissions.Get(r.PathValue("token"))
	if sub == nil {
		writeError(w, 404, "submission not found")
	}
	return sub
}

func (s *Server) handleSubmissionStatus(w http.ResponseWriter, r *http.Request) {
	sub := s.submission(w, r)
	if sub == nil {
		return
	}
	writeJSON(w, 200, sub.Status())
}

func (s *Server) handleSubmissionReport(w http.ResponseWriter, r *http.Request) {
	sub := s.submission(w, r)
	if sub == nil {
		return
	}
	text, filename, ok := sub.Artifact()
	if !ok {
		writeError(w, 404, "report not ready")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(200)
	_, _ = w.Write([]byte(text))
}

func (s *Server) handleSubmissionReportPDF(w http.ResponseWriter, r *http.Request) {
	if s.deps.PDF == nil {
		writeError(w, 503, "pdf renderer unavailable")
		return
	}
	sub := s.submission(w, r)
	if sub == nil {
		return
	}
	text, filename, ok := sub.Artifact()
	if !ok {
		writeError(w, 404, "report not ready")
		return
	}
	pdf, err := s.deps.PDF.Render(r.Context(), text)
	if err != nil {
		log.Printf("httpapi: render pdf token=%s: %v", sub.Token, err)
		writeError(w, 500, "failed to render pdf")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", pdfName(filename)))
	w.WriteHeader(200)
	_, _ = w.Write(pdf)
}

func pdfName(txtName string) string {
	if ext := filepath.Ext(txtName); ext == ".txt" {
		return txtName[:len(txtName)-len(ext)] + ".pdf"
	}
	return txtName + ".pdf"
}

func (s *Server) handleCaseTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.deps.Catalog.CaseTypes(r.Context())
	if err != nil {
		log.Printf("httpapi: case types: %v", err)
		writeError(w, 502, "reference data unavailable")
		return
	}
	writeJSON(w, 200, map[string]any{"case_types": types})
}

func (s *Server) handleCaseTypeDocuments(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.deps.Catalog.Requirements(r.Context(), r.PathValue("id"))
	if err != nil {
		log.Printf("httpapi: requirements %s: %v", r.PathValue("id"), err)
		writeError(w, 502, "reference data unavailable")
		return
	}
	writeJSON(w, 200, reqs)
}

func (s *Server) handleArchiveList(w http.ResponseWriter, r *http.Request) {
	if s.deps.Archive == nil {
		writeError(w, 503, "archive unavailable")
		return
	}
	list, err := s.deps.Archive.List()
	if err != nil {
		log.Printf("httpapi: archive list: %v", err)
		writeError(w, 500, "failed to list archive")
		return
	}
	writeJSON(w, 200, map[string]any{"reports": list})
}

func (s *Server) handleArchiveGet(w http.ResponseWriter, r *http.Request) {
	if s.deps.Archive == nil {
		writeError(w, 503, "archive unavailable")
		return
	}
	entry, err := s.deps.Archive.Get(r.PathValue("token"))
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			writeError(w, 404, "report not found")
			return
		}
		log.Printf("httpapi: archive get %s: %v", r.PathValue("token"), err)
		writeError(w, 500, "failed to load report")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", entry.Filename))
	w.WriteHeader(200)
	_, _ = w.Write([]byte(entry.Text))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]any{
		"status":   "ok",
		"sessions": s.deps.Sessions.Len(),
	})
}
