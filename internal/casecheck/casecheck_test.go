package casecheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckSubmitsCaseState(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "passport.jpg")
	if err := os.WriteFile(docPath, []byte("scan bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/completeness" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatal(err)
		}
		if got := r.FormValue("case_type"); got != "retirement" {
			t.Fatalf("case_type = %q", got)
		}
		if got := r.FormValue("known_documents"); got != `["military_id","marriage_certificate"]` {
			t.Fatalf("known_documents = %q", got)
		}
		f, header, err := r.FormFile("identity_document")
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		if header.Filename != "passport.jpg" {
			t.Fatalf("filename = %q", header.Filename)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"documents": [
				{"id": "passport", "label": "Паспорт", "present": true, "critical": true},
				{"id": "snils", "label": "СНИЛС", "present": false, "critical": true}
			],
			"missing_critical": ["snils"],
			"missing_other": ["education_diploma"]
		}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL).Check(context.Background(), Request{
		CaseType:         "retirement",
		KnownDocuments:   []string{"military_id", "marriage_certificate"},
		IdentityDocument: docPath,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Documents) != 2 || !res.Documents[0].Present || res.Documents[1].Present {
		t.Fatalf("documents = %+v", res.Documents)
	}
	if res.Complete() {
		t.Fatal("missing critical document reported complete")
	}
	if len(res.MissingOther) != 1 || res.MissingOther[0] != "education_diploma" {
		t.Fatalf("missing other = %v", res.MissingOther)
	}
}

func TestCheckWithoutIdentityDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatal(err)
		}
		if _, _, err := r.FormFile("identity_document"); err == nil {
			t.Fatal("unexpected file part")
		}
		w.Write([]byte(`{"documents": [], "missing_critical": [], "missing_other": []}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL).Check(context.Background(), Request{CaseType: "social"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Complete() {
		t.Fatal("empty verdict should be complete")
	}
}

func TestCheckServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "reference data unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Check(context.Background(), Request{CaseType: "retirement"})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("err = %v", err)
	}
}

func TestCheckMissingIdentityFile(t *testing.T) {
	_, err := NewClient("http://unused").Check(context.Background(), Request{
		CaseType:         "retirement",
		IdentityDocument: filepath.Join(t.TempDir(), "gone.jpg"),
	})
	if err == nil || !strings.Contains(err.Error(), "identity document") {
		t.Fatalf("err = %v", err)
	}
}
