// Package docscan defines the document-extraction contract and the HTTP
// client for the scanning service. The service reads an uploaded document
// and answers with a tagged result: exactly one payload, selected by kind.
package docscan

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// DocumentKind tags an extraction result. The set is closed; anything else
// on the wire is rejected before it can reach the case model.
type DocumentKind string

const (
	KindPassport DocumentKind = "passport"
	KindSNILS    DocumentKind = "snils"
	KindLedger   DocumentKind = "employment_ledger"
	KindOther    DocumentKind = "other"
	KindError    DocumentKind = "error"
)

// ErrUnknownKind reports a document kind outside the closed set.
var ErrUnknownKind = errors.New("unknown document kind")

// ErrMissingPayload reports an envelope whose payload is absent or null.
var ErrMissingPayload = errors.New("missing payload")

// PassportData is what the scanner reads off an identity document. Dates and
// gender arrive as free text exactly as printed; normalization happens at
// merge time. Empty fields were not extracted.
type PassportData struct {
	LastName    string `json:"last_name"`
	FirstName   string `json:"first_name"`
	MiddleName  string `json:"middle_name"`
	BirthDate   string `json:"birth_date"`
	Gender      string `json:"gender"`
	Citizenship string `json:"citizenship"`
}

// SNILSData is what the scanner reads off the national insurance card. The
// card carries the holder's name and birth date alongside the number, so the
// same overwrite rules apply to those fields when present.
type SNILSData struct {
	Number     string `json:"number"`
	LastName   string `json:"last_name"`
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name"`
	BirthDate  string `json:"birth_date"`
}

// LedgerRecord is one employment span parsed out of a workbook page.
type LedgerRecord struct {
	Organization string `json:"organization"`
	Position     string `json:"position"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
}

// LedgerData is a parsed workbook: the spans plus the scanner's figure for
// total service years. TotalYears of zero means the scanner could not
// compute one.
type LedgerData struct {
	Records    []LedgerRecord `json:"records"`
	TotalYears float64        `json:"total_years"`
}

// OtherDocData covers every auxiliary document: certificates, references,
// anything that is not a passport, insurance card, or workbook. RawType is
// the scanner's literal reading of the document's title; StandardType is the
// standardized label it mapped that to, empty when mapping failed. Flagged
// marks documents an operator should review by hand.
type OtherDocData struct {
	RawType      string            `json:"raw_type"`
	StandardType string            `json:"standard_type"`
	Fields       map[string]string `json:"fields"`
	Flagged      bool              `json:"flagged"`
}

// Failure is the scanner's structured error payload: extraction ran and
// could not produce data.
type Failure struct {
	DocumentKind string `json:"document_kind"`
	Message      string `json:"message"`
}

// ExtractionResult is the decoded union. Exactly one payload pointer is
// non-nil, matching Kind.
type ExtractionResult struct {
	Kind     DocumentKind
	Passport *PassportData
	SNILS    *SNILSData
	Ledger   *LedgerData
	Other    *OtherDocData
	Failure  *Failure
}

type wireEnvelope struct {
	DocumentKind string          `json:"document_kind"`
	Payload      json.RawMessage `json:"payload"`
}

// DecodeResult parses a wire envelope into a validated union. Unknown kinds
// and absent payloads fail here, before any merge can start.
func DecodeResult(data []byte) (ExtractionResult, error) {
	var env wireEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ExtractionResult{}, fmt.Errorf("docscan: decode envelope: %w", err)
	}
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return ExtractionResult{}, fmt.Errorf("docscan: kind %q: %w", env.DocumentKind, ErrMissingPayload)
	}
	res := ExtractionResult{Kind: DocumentKind(env.DocumentKind)}
	var payload any
	switch res.Kind {
	case KindPassport:
		res.Passport = &PassportData{}
		payload = res.Passport
	case KindSNILS:
		res.SNILS = &SNILSData{}
		payload = res.SNILS
	case KindLedger:
		res.Ledger = &LedgerData{}
		payload = res.Ledger
	case KindOther:
		res.Other = &OtherDocData{}
		payload = res.Other
	case KindError:
		res.Failure = &Failure{}
		payload = res.Failure
	default:
		return ExtractionResult{}, fmt.Errorf("docscan: kind %q: %w", env.DocumentKind, ErrUnknownKind)
	}
	if err := json.Unmarshal(env.Payload, payload); err != nil {
		return ExtractionResult{}, fmt.Errorf("docscan: decode %s payload: %w", res.Kind, err)
	}
	return res, nil
}
