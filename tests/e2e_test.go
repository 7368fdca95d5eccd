//go:build integration

package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/komorreby/PFR-AI-sub000/internal/archive"
	"github.com/komorreby/PFR-AI-sub000/internal/casecheck"
	"github.com/komorreby/PFR-AI-sub000/internal/docscan"
	"github.com/komorreby/PFR-AI-sub000/internal/httpapi"
	"github.com/komorreby/PFR-AI-sub000/internal/narrative"
	"github.com/komorreby/PFR-AI-sub000/internal/refdata"
	"github.com/komorreby/PFR-AI-sub000/internal/report"
	"github.com/komorreby/PFR-AI-sub000/internal/wizard"
)

// stubServices fakes the four remote collaborators over real HTTP, so the
// intake server's own clients carry the traffic end to end.
func stubServices(t *testing.T) (docscanURL, casecheckURL, refdataURL, narrativeURL string) {
	t.Helper()

	docscanSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			http.Error(w, "bad form", 400)
			return
		}
		kind := r.FormValue("declared_kind")
		var payload any
		switch kind {
		case "passport":
			payload = map[string]any{
				"last_name": "Иванов", "first_name": "Иван", "middle_name": "Иванович",
				"birth_date": "12.03.1961", "gender": "МУЖ.", "citizenship": "RF",
			}
		case "employment_ledger":
			payload = map[string]any{
				"records": []map[string]any{
					{"organization": "Завод №1", "position": "механик", "start_date": "01.02.1980", "end_date": "30.06.1999"},
					{"organization": "Завод №2", "position": "инженер", "start_date": "01.07.1999", "end_date": "31.12.2014"},
				},
				"total_years": 34.9,
			}
		default:
			kind = "other"
			payload = map[string]any{"raw_type": "удостоверение ветерана", "standard_type": "veteran_certificate", "flagged": false}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"document_kind": kind, "payload": payload})
	}))
	t.Cleanup(docscanSrv.Close)

	casecheckSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"documents": []map[string]any{
				{"id": "passport", "label": "Passport", "present": true, "critical": true},
				{"id": "employment_ledger", "label": "Employment ledger", "present": true, "critical": true},
				{"id": "photo", "label": "Photo", "present": false, "critical": false},
			},
			"missing_critical": []string{},
			"missing_other":    []string{"Photo"},
		})
	}))
	t.Cleanup(casecheckSrv.Close)

	refdataSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/documents") {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"required": []string{"passport", "employment_ledger"},
				"optional": []string{"photo"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"case_types": []map[string]string{
			{"id": "retirement", "display_name": "Retirement pension"},
		}})
	}))
	t.Cleanup(refdataSrv.Close)

	narrativeSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"analysis":   "Иванов Иван Иванович meets the service requirements for a retirement pension.",
			"confidence": 0.87,
		})
	}))
	t.Cleanup(narrativeSrv.Close)

	return docscanSrv.URL, casecheckSrv.URL, refdataSrv.URL, narrativeSrv.URL
}

func startIntakeServer(t *testing.T) (*httptest.Server, *archive.Store) {
	t.Helper()
	docscanURL, casecheckURL, refdataURL, narrativeURL := stubServices(t)

	arch, err := archive.Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { arch.Close() })

	handler := httpapi.NewServer(httpapi.Deps{
		Sessions:    wizard.NewStore(),
		Submissions: report.NewStore(),
		Assembler:   report.NewAssembler(casecheck.NewClient(casecheckURL), narrative.NewClient(narrativeURL)),
		Extractor:   docscan.NewClient(docscanURL),
		Catalog:     refdata.NewCatalog(refdata.NewClient(refdataURL)),
		Archive:     arch,
		UploadDir:   t.TempDir(),
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, arch
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %q: %v", string(data), err)
	}
	return out
}

func postJSON(t *testing.T, url string, body any) map[string]any {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	resp, err := http.Post(url, "application/json", reader)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	return decodeBody(t, resp)
}

func getJSON(t *testing.T, url string) map[string]any {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	return decodeBody(t, resp)
}

func setField(t *testing.T, baseURL, caseID, path, value string) {
	t.Helper()
	b, _ := json.Marshal(map[string]any{
		"fields": []map[string]string{{"path": path, "value": value}},
	})
	req, _ := http.NewRequest(http.MethodPut, baseURL+"/v1/cases/"+caseID+"/fields", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT fields: %v", err)
	}
	defer resp.Body.Close()
	body := decodeBody(t, resp)
	if failed, _ := body["failed"].([]any); len(failed) != 0 {
		t.Fatalf("set %s=%q failed: %v", path, value, failed)
	}
}

func upload(t *testing.T, baseURL, caseID, kind string) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("document", kind+".jpg")
	fmt.Fprint(part, "scan bytes")
	_ = mw.WriteField("kind", kind)
	mw.Close()

	resp, err := http.Post(baseURL+"/v1/cases/"+caseID+"/documents", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload %s: %v", kind, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload %s: %d %s", kind, resp.StatusCode, data)
	}
	return decodeBody(t, resp)
}

// TestE2ERetirementIntake drives a retirement claim through the whole
// engine: case creation, type selection, scans reconciling into the model,
// the gated step walk, and finally submission through completeness check,
// narrative analysis, and the redacted downloadable report.
func TestE2ERetirementIntake(t *testing.T) {
	srv, arch := startIntakeServer(t)
	base := srv.URL

	created := postJSON(t, base+"/v1/cases", nil)
	caseID, _ := created["case_id"].(string)
	if caseID == "" {
		t.Fatalf("create case: %v", created)
	}

	// The bootstrap sequence holds the session until a type is chosen.
	adv := postJSON(t, base+"/v1/cases/"+caseID+"/advance", nil)
	if moved, _ := adv["moved"].(bool); moved {
		t.Fatal("advanced without a case type")
	}

	setField(t, base, caseID, "case_type", "retirement")
	adv = postJSON(t, base+"/v1/cases/"+caseID+"/advance", nil)
	if adv["step"] != "documents" {
		t.Fatalf("after selection step = %v, want documents", adv["step"])
	}

	// Passport fills identity, two workbook pages append records, and the
	// veteran certificate routes to the benefits set.
	res := upload(t, base, caseID, "passport")
	if res["status"] != "extracted" {
		t.Fatalf("passport upload: %v", res)
	}
	upload(t, base, caseID, "employment_ledger")
	upload(t, base, caseID, "employment_ledger")
	upload(t, base, caseID, "other")

	view := getJSON(t, base+"/v1/cases/"+caseID)
	model, _ := view["model"].(map[string]any)
	identity, _ := model["identity"].(map[string]any)
	if identity["last_name"] != "Иванов" || identity["birth_date"] != "1961-03-12" {
		t.Fatalf("identity not reconciled: %v", identity)
	}
	employment, _ := model["employment"].(map[string]any)
	records, _ := employment["records"].([]any)
	if len(records) != 4 {
		t.Fatalf("ledger records = %d, want 4 (two pages of two rows)", len(records))
	}
	if employment["total_years"] != 34.9 {
		t.Fatalf("total_years = %v, want the last scan's figure", employment["total_years"])
	}
	benefits, _ := model["benefits"].([]any)
	if len(benefits) != 1 || benefits[0] != "veteran_certificate" {
		t.Fatalf("benefits = %v", benefits)
	}

	// The insurance number is the one identity field no scan provided.
	setField(t, base, caseID, "identity.snils", "112-233-445 95")

	for i := 0; i < 8; i++ {
		adv = postJSON(t, base+"/v1/cases/"+caseID+"/advance", nil)
		if failed, _ := adv["failed"].([]any); len(failed) > 0 {
			t.Fatalf("step %v blocked: %v", adv["step"], failed)
		}
		if moved, _ := adv["moved"].(bool); !moved {
			break
		}
	}
	if adv["step"] != "summary" {
		t.Fatalf("final step = %v, want summary", adv["step"])
	}

	submitted := postJSON(t, base+"/v1/cases/"+caseID+"/submit", nil)
	token, _ := submitted["token"].(string)
	if token == "" {
		t.Fatalf("submit: %v", submitted)
	}

	deadline := time.Now().Add(10 * time.Second)
	var status map[string]any
	for {
		status = getJSON(t, base+"/v1/submissions/"+token)
		if status["state"] == "done" || status["state"] == "failed" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("submission stuck: %v", status)
		}
		time.Sleep(25 * time.Millisecond)
	}
	if status["state"] != "done" {
		t.Fatalf("submission state = %v (%v)", status["state"], status["error"])
	}

	resp, err := http.Get(base + "/v1/submissions/" + token + "/report")
	if err != nil {
		t.Fatalf("download report: %v", err)
	}
	defer resp.Body.Close()
	text, _ := io.ReadAll(resp.Body)
	reportText := string(text)

	for _, section := range []string{"PENSION CASE REPORT", "DOCUMENT COMPLETENESS", "ELIGIBILITY ANALYSIS"} {
		if !strings.Contains(reportText, section) {
			t.Fatalf("report missing %q:\n%s", section, reportText)
		}
	}
	if !strings.Contains(reportText, "Confidence: 87%") {
		t.Fatalf("report missing confidence line:\n%s", reportText)
	}
	if strings.Contains(reportText, "Иванов") {
		t.Fatalf("applicant name leaked into the report:\n%s", reportText)
	}
	if !strings.Contains(reportText, "[REDACTED]") {
		t.Fatalf("redaction marker absent:\n%s", reportText)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "case-"+caseID) || !strings.Contains(cd, ".txt") {
		t.Fatalf("disposition = %q", cd)
	}

	// Archiving runs after the submission flips to done; give it a moment.
	archDeadline := time.Now().Add(5 * time.Second)
	for {
		list, err := arch.List()
		if err != nil {
			t.Fatalf("archive list: %v", err)
		}
		if len(list) == 1 {
			if list[0].Token != token || list[0].CaseID != caseID {
				t.Fatalf("archived entry = %+v", list[0])
			}
			break
		}
		if time.Now().After(archDeadline) {
			t.Fatal("report never reached the archive")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
