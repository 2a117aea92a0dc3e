// Package domain contains core business entities and types for pathology lab
// reports: result flags, patient context, report documents and test templates.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Flag is the abnormal-flag classification attached to a single result row.
// It drives colour and bolding cues in rendered reports.
type Flag string

const (
	FlagNormal   Flag = "normal"
	FlagLow      Flag = "low"
	FlagHigh     Flag = "high"
	FlagCritical Flag = "critical"
)

// Gender is the patient attribute used to pick a gender-split reference range.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// ReportStatus tracks whether a report is still being edited by lab staff.
type ReportStatus string

const (
	ReportDraft ReportStatus = "draft"
	ReportFinal ReportStatus = "final"
)

// Validation errors for report data integrity
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidFlag   = errors.New("invalid result flag")
	ErrInvalidStatus = errors.New("invalid report status")
	ErrInvalidGender = errors.New("invalid gender")
)

// IsValid reports whether f is one of the four flag tokens.
func (f Flag) IsValid() bool {
	switch f {
	case FlagNormal, FlagLow, FlagHigh, FlagCritical:
		return true
	default:
		return false
	}
}

// IsAbnormal returns true for any flag other than normal.
func (f Flag) IsAbnormal() bool {
	return f.IsValid() && f != FlagNormal
}

// String returns the string representation of the flag.
func (f Flag) String() string {
	return string(f)
}

// Symbol returns the short marker printed next to a value on a report.
func (f Flag) Symbol() string {
	switch f {
	case FlagLow:
		return "L"
	case FlagHigh:
		return "H"
	case FlagCritical:
		return "!!"
	default:
		return ""
	}
}

// ParseGender normalises free-form gender input. Matching is case-insensitive;
// an empty string stays empty and anything unrecognised becomes GenderOther.
func ParseGender(s string) Gender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ""
	case "male", "m":
		return GenderMale
	case "female", "f":
		return GenderFemale
	default:
		return GenderOther
	}
}

// IsValid reports whether g is a known gender value. The empty value is
// accepted because gender is optional on a report.
func (g Gender) IsValid() bool {
	switch g {
	case "", GenderMale, GenderFemale, GenderOther:
		return true
	default:
		return false
	}
}

// IsValid validates the report status.
func (s ReportStatus) IsValid() bool {
	switch s {
	case ReportDraft, ReportFinal:
		return true
	default:
		return false
	}
}

// PatientInfo is the patient context captured at intake.
type PatientInfo struct {
	Name   string `json:"name"`
	Age    int    `json:"age,omitempty"`
	Gender Gender `json:"gender,omitempty"`
	Phone  string `json:"phone,omitempty"`
}

// ResultRow is one measured parameter on a report.
type ResultRow struct {
	Parameter      string `json:"parameter"`
	Section        string `json:"section,omitempty"`
	Value          string `json:"value"`
	Unit           string `json:"unit,omitempty"`
	ReferenceRange string `json:"reference_range"`
	Flag           Flag   `json:"flag"`
	Rule           string `json:"rule,omitempty"` // classifier rule that produced Flag
}

// Report is the persisted report document.
type Report struct {
	ID            string       `json:"id"`
	LabID         string       `json:"lab_id"`
	TemplateID    string       `json:"template_id,omitempty"`
	TestName      string       `json:"test_name"`
	Patient       PatientInfo  `json:"patient"`
	Results       []ResultRow  `json:"results"`
	Status        ReportStatus `json:"status"`
	AbnormalCount int          `json:"abnormal_count"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Validate ensures the report carries the fields every lab workflow depends on.
func (r *Report) Validate() error {
	if r.LabID == "" {
		return fmt.Errorf("report validation: %w", NewValidationError("lab_id", "lab ID is required", r.LabID))
	}
	if r.TestName == "" {
		return fmt.Errorf("report validation: %w", NewValidationError("test_name", "test name is required", r.TestName))
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("report validation: %w", ErrInvalidStatus)
	}
	if !r.Patient.Gender.IsValid() {
		return fmt.Errorf("report validation: %w", ErrInvalidGender)
	}
	for i, row := range r.Results {
		if row.Parameter == "" {
			return fmt.Errorf("report validation: %w",
				NewValidationError(fmt.Sprintf("results[%d].parameter", i), "parameter name is required", row.Parameter))
		}
		if row.Flag != "" && !row.Flag.IsValid() {
			return fmt.Errorf("report validation: results[%d]: %w", i, ErrInvalidFlag)
		}
	}
	return nil
}

// AbnormalResults returns the rows whose flag is not normal.
func (r *Report) AbnormalResults() []ResultRow {
	var out []ResultRow
	for _, row := range r.Results {
		if row.Flag.IsAbnormal() {
			out = append(out, row)
		}
	}
	return out
}

// TestTemplate is a lab-configured report layout: sections of parameters with
// their default units and reference ranges.
type TestTemplate struct {
	ID        string            `json:"id"`
	LabID     string            `json:"lab_id"`
	Name      string            `json:"name"`
	Category  string            `json:"category,omitempty"`
	Sections  []TemplateSection `json:"sections"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// TemplateSection groups parameters under a heading (e.g. "Differential Count").
type TemplateSection struct {
	Name       string              `json:"name"`
	Parameters []TemplateParameter `json:"parameters"`
}

// TemplateParameter describes one parameter on a template. CriticalLow and
// CriticalHigh are optional panic limits.
type TemplateParameter struct {
	Name           string   `json:"name"`
	Unit           string   `json:"unit,omitempty"`
	ReferenceRange string   `json:"reference_range"`
	CriticalLow    *float64 `json:"critical_low,omitempty"`
	CriticalHigh   *float64 `json:"critical_high,omitempty"`
}

// Parameter looks up a parameter by name, ignoring case and surrounding space.
func (t *TestTemplate) Parameter(name string) (TemplateParameter, bool) {
	if t == nil {
		return TemplateParameter{}, false
	}
	key := strings.ToLower(strings.TrimSpace(name))
	for _, section := range t.Sections {
		for _, p := range section.Parameters {
			if strings.ToLower(strings.TrimSpace(p.Name)) == key {
				return p, true
			}
		}
	}
	return TemplateParameter{}, false
}

// Validate checks template structure before it is stored.
func (t *TestTemplate) Validate() error {
	if t.LabID == "" {
		return fmt.Errorf("template validation: %w", NewValidationError("lab_id", "lab ID is required", t.LabID))
	}
	if t.Name == "" {
		return fmt.Errorf("template validation: %w", NewValidationError("name", "template name is required", t.Name))
	}
	for i, s := range t.Sections {
		for j, p := range s.Parameters {
			if p.Name == "" {
				return fmt.Errorf("template validation: %w",
					NewValidationError(fmt.Sprintf("sections[%d].parameters[%d].name", i, j), "parameter name is required", p.Name))
			}
			if p.CriticalLow != nil && p.CriticalHigh != nil && *p.CriticalLow > *p.CriticalHigh {
				return fmt.Errorf("template validation: %w",
					NewValidationError(fmt.Sprintf("sections[%d].parameters[%d]", i, j), "critical_low exceeds critical_high", p.Name))
			}
		}
	}
	return nil
}
