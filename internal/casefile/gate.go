package casefile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/komorreby/PFR-AI-sub000/internal/normalize"
)

// Field paths use the same snake_case names as the wire model, with
// employment records addressed by index: employment.records[2].position.
const (
	FieldCaseType           = "case_type"
	FieldLastName           = "identity.last_name"
	FieldFirstName          = "identity.first_name"
	FieldMiddleName         = "identity.middle_name"
	FieldBirthDate          = "identity.birth_date"
	FieldGender             = "identity.gender"
	FieldSNILS              = "identity.snils"
	FieldCitizenship        = "identity.citizenship"
	FieldDependents         = "identity.dependents"
	FieldNameChanged        = "identity.name_changed"
	FieldPriorLastName      = "identity.prior_name.last_name"
	FieldPriorChangedAt     = "identity.prior_name.changed_at"
	FieldTotalYears         = "employment.total_years"
	FieldDisabilityGroup    = "disability.group"
	FieldDisabilityCert     = "disability.certificate_number"
	FieldDisabilityAssigned = "disability.assigned_at"
)

// ErrUnknownField reports a path outside the model's field grammar.
var ErrUnknownField = errors.New("unknown field path")

// ErrNoNameChange reports a write to the prior-name block while no name
// change has been declared.
var ErrNoNameChange = errors.New("no name change declared")

// FieldError is one gate finding: the field path that failed and a short
// human-readable reason.
type FieldError struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func (e FieldError) Error() string { return e.Path + ": " + e.Reason }

// staticRequired lists the unconditional required paths per step. Steps
// absent from the map gate nothing. The case-type step is deliberately not
// here: leaving it is guarded explicitly by the session, since an unselected
// type has no field validator to delegate to.
var staticRequired = map[StepID][]string{
	StepIdentity: {
		FieldLastName,
		FieldFirstName,
		FieldBirthDate,
		FieldGender,
		FieldSNILS,
		FieldCitizenship,
	},
	StepEmployment: {FieldTotalYears},
	StepDisability: {
		FieldDisabilityGroup,
		FieldDisabilityCert,
		FieldDisabilityAssigned,
	},
}

// RequiredFields computes the exact field set that must validate before the
// given step may be left: the step's static list, plus the prior-name pair
// when a name change is declared, plus every subfield of every employment
// record currently on the model when the step covers employment.
func RequiredFields(m *CaseModel, step StepID) []string {
	paths := append([]string(nil), staticRequired[step]...)
	if step == StepIdentity && m.Identity.NameChanged {
		paths = append(paths, FieldPriorLastName, FieldPriorChangedAt)
	}
	if step == StepEmployment {
		for i := range m.Employment.Records {
			paths = append(paths,
				recordPath(i, "organization"),
				recordPath(i, "position"),
				recordPath(i, "start_date"),
				recordPath(i, "end_date"),
			)
		}
	}
	return paths
}

// Validate checks each path against the model and returns one FieldError per
// failing path, in input order. An empty result means the gate is open.
func Validate(m *CaseModel, paths []string) []FieldError {
	var errs []FieldError
	for _, path := range paths {
		if reason := validateField(m, path); reason != "" {
			errs = append(errs, FieldError{Path: path, Reason: reason})
		}
	}
	return errs
}

func validateField(m *CaseModel, path string) string {
	val, ok := Value(m, path)
	if !ok {
		return "unknown field"
	}
	switch path {
	case FieldCaseType:
		if !KnownCaseType(CaseType(val)) {
			return "select a case type"
		}
		return ""
	case FieldBirthDate, FieldPriorChangedAt, FieldDisabilityAssigned:
		return validateDate(val)
	case FieldSNILS:
		if val == "" {
			return "required"
		}
		if formatted, ok := normalize.SNILS(val); !ok || formatted != val {
			return "must be an eleven-digit insurance number"
		}
		return ""
	case FieldTotalYears:
		years, err := strconv.ParseFloat(val, 64)
		if err != nil || years <= 0 {
			return "must be greater than zero"
		}
		return ""
	case FieldGender:
		if val == "" {
			return "required"
		}
		return ""
	}
	if _, field, ok := parseRecordPath(path); ok {
		if field == "start_date" || field == "end_date" {
			return validateDate(val)
		}
	}
	if strings.TrimSpace(val) == "" {
		return "required"
	}
	return ""
}

func validateDate(val string) string {
	if val == "" {
		return "required"
	}
	if _, err := time.Parse(normalize.ISODate, val); err != nil {
		return "must be a valid date"
	}
	return ""
}

// SetField writes a single field through its path, normalizing dates and
// insurance numbers on the way in. Values that fail to normalize are stored
// raw so Validate can point at them. The case type is not settable here;
// changing it re-resolves the sequence and belongs to the owning session.
func (m *CaseModel) SetField(path, raw string) error {
	val := strings.TrimSpace(raw)
	switch path {
	case FieldCaseType:
		return fmt.Errorf("field %s: set via case-type selection", path)
	case FieldLastName:
		m.Identity.LastName = val
	case FieldFirstName:
		m.Identity.FirstName = val
	case FieldMiddleName:
		m.Identity.MiddleName = val
	case FieldBirthDate:
		m.Identity.BirthDate = storeDate(val)
	case FieldGender:
		switch Gender(val) {
		case GenderMale, GenderFemale, GenderUnset:
			m.Identity.Gender = Gender(val)
		default:
			return fmt.Errorf("field %s: must be %q or %q", path, GenderMale, GenderFemale)
		}
	case FieldSNILS:
		if formatted, ok := normalize.SNILS(val); ok {
			m.Identity.SNILS = formatted
		} else {
			m.Identity.SNILS = val
		}
	case FieldCitizenship:
		m.Identity.Citizenship = val
	case FieldDependents:
		n, err := strconv.Atoi(val)
		if err != nil || n < 0 {
			return fmt.Errorf("field %s: must be a non-negative integer", path)
		}
		m.Identity.Dependents = n
	case FieldNameChanged:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("field %s: must be true or false", path)
		}
		m.Identity.NameChanged = b
		if !b {
			m.Identity.PriorName = nil
		}
	case FieldPriorLastName:
		if !m.Identity.NameChanged {
			return fmt.Errorf("field %s: %w", path, ErrNoNameChange)
		}
		m.ensurePriorName().LastName = val
	case FieldPriorChangedAt:
		if !m.Identity.NameChanged {
			return fmt.Errorf("field %s: %w", path, ErrNoNameChange)
		}
		m.ensurePriorName().ChangedAt = storeDate(val)
	case FieldTotalYears:
		years, err := strconv.ParseFloat(val, 64)
		if err != nil || years < 0 {
			return fmt.Errorf("field %s: must be a non-negative number", path)
		}
		m.Employment.TotalYears = years
	case FieldDisabilityGroup, FieldDisabilityCert, FieldDisabilityAssigned:
		// The disability block exists only on disability cases.
		if m.CaseType != CaseTypeDisability {
			return fmt.Errorf("field %s: case type is not disability", path)
		}
		d := m.ensureDisability()
		switch path {
		case FieldDisabilityGroup:
			d.Group = val
		case FieldDisabilityCert:
			d.CertificateNumber = val
		case FieldDisabilityAssigned:
			d.AssignedAt = storeDate(val)
		}
	default:
		idx, field, ok := parseRecordPath(path)
		if !ok {
			return fmt.Errorf("field %s: %w", path, ErrUnknownField)
		}
		if idx < 0 || idx >= len(m.Employment.Records) {
			return fmt.Errorf("field %s: record index out of range", path)
		}
		rec := &m.Employment.Records[idx]
		switch field {
		case "organization":
			rec.Organization = val
		case "position":
			rec.Position = val
		case "start_date":
			rec.StartDate = storeDate(val)
		case "end_date":
			rec.EndDate = storeDate(val)
		default:
			return fmt.Errorf("field %s: %w", path, ErrUnknownField)
		}
	}
	return nil
}

// Value reads a field by path, rendering it as the string form SetField
// accepts. The second return is false for paths outside the grammar or
// record indexes that do not exist.
func Value(m *CaseModel, path string) (string, bool) {
	switch path {
	case FieldCaseType:
		return string(m.CaseType), true
	case FieldLastName:
		return m.Identity.LastName, true
	case FieldFirstName:
		return m.Identity.FirstName, true
	case FieldMiddleName:
		return m.Identity.MiddleName, true
	case FieldBirthDate:
		return m.Identity.BirthDate, true
	case FieldGender:
		return string(m.Identity.Gender), true
	case FieldSNILS:
		return m.Identity.SNILS, true
	case FieldCitizenship:
		return m.Identity.Citizenship, true
	case FieldDependents:
		return strconv.Itoa(m.Identity.Dependents), true
	case FieldNameChanged:
		return strconv.FormatBool(m.Identity.NameChanged), true
	case FieldPriorLastName:
		if m.Identity.PriorName == nil {
			return "", true
		}
		return m.Identity.PriorName.LastName, true
	case FieldPriorChangedAt:
		if m.Identity.PriorName == nil {
			return "", true
		}
		return m.Identity.PriorName.ChangedAt, true
	case FieldTotalYears:
		return strconv.FormatFloat(m.Employment.TotalYears, 'f', -1, 64), true
	case FieldDisabilityGroup:
		if m.Disability == nil {
			return "", true
		}
		return m.Disability.Group, true
	case FieldDisabilityCert:
		if m.Disability == nil {
			return "", true
		}
		return m.Disability.CertificateNumber, true
	case FieldDisabilityAssigned:
		if m.Disability == nil {
			return "", true
		}
		return m.Disability.AssignedAt, true
	}
	idx, field, ok := parseRecordPath(path)
	if !ok {
		return "", false
	}
	if idx < 0 || idx >= len(m.Employment.Records) {
		return "", false
	}
	rec := m.Employment.Records[idx]
	switch field {
	case "organization":
		return rec.Organization, true
	case "position":
		return rec.Position, true
	case "start_date":
		return rec.StartDate, true
	case "end_date":
		return rec.EndDate, true
	}
	return "", false
}

func (m *CaseModel) ensurePriorName() *PriorName {
	if m.Identity.PriorName == nil {
		m.Identity.PriorName = &PriorName{}
	}
	return m.Identity.PriorName
}

func (m *CaseModel) ensureDisability() *Disability {
	if m.Disability == nil {
		m.Disability = &Disability{}
	}
	return m.Disability
}

// storeDate keeps the canonical form when the input parses and the raw text
// otherwise, so validation can surface the exact value the user entered.
func storeDate(val string) string {
	if val == "" {
		return ""
	}
	if iso, ok := normalize.Date(val); ok {
		return iso
	}
	return val
}

func recordPath(idx int, field string) string {
	return fmt.Sprintf("employment.records[%d].%s", idx, field)
}

func parseRecordPath(path string) (int, string, bool) {
	const prefix = "employment.records["
	if !strings.HasPrefix(path, prefix) {
		return 0, "", false
	}
	rest := path[len(prefix):]
	close := strings.Index(rest, "].")
	if close < 0 {
		return 0, "", false
	}
	idx, err := strconv.Atoi(rest[:close])
	if err != nil {
		return 0, "", false
	}
	return idx, rest[close+2:], true
}
