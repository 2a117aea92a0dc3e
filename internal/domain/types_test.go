package domain

import (
	"errors"
	"testing"
)

func TestFlagConstants(t *testing.T) {
	tests := []struct {
		name     string
		value    Flag
		expected string
		abnormal bool
		symbol   string
	}{
		{"Normal", FlagNormal, "normal", false, ""},
		{"Low", FlagLow, "low", true, "L"},
		{"High", FlagHigh, "high", true, "H"},
		{"Critical", FlagCritical, "critical", true, "!!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value.String() != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, tt.value.String())
			}
			if !tt.value.IsValid() {
				t.Errorf("Expected %s to be valid", tt.value)
			}
			if tt.value.IsAbnormal() != tt.abnormal {
				t.Errorf("Expected IsAbnormal %v for %s", tt.abnormal, tt.value)
			}
			if tt.value.Symbol() != tt.symbol {
				t.Errorf("Expected symbol %q, got %q", tt.symbol, tt.value.Symbol())
			}
		})
	}

	if Flag("borderline").IsValid() {
		t.Error("Unknown flag should be invalid")
	}
	if Flag("borderline").IsAbnormal() {
		t.Error("Unknown flag should not count as abnormal")
	}
}

func TestParseGender(t *testing.T) {
	tests := []struct {
		input    string
		expected Gender
	}{
		{"male", GenderMale},
		{"Male", GenderMale},
		{" MALE ", GenderMale},
		{"m", GenderMale},
		{"female", GenderFemale},
		{"FEMALE", GenderFemale},
		{"F", GenderFemale},
		{"", ""},
		{"other", GenderOther},
		{"unknown", GenderOther},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseGender(tt.input); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestReportValidate(t *testing.T) {
	valid := func() *Report {
		return &Report{
			LabID:    "lab-1",
			TestName: "Complete Blood Count",
			Status:   ReportDraft,
			Patient:  PatientInfo{Name: "A Patient", Gender: GenderMale},
			Results: []ResultRow{
				{Parameter: "Hemoglobin", Value: "10", ReferenceRange: "M - 13.5 - 18.0\nF - 11.5 - 16.4", Flag: FlagLow},
			},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("Expected valid report, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(r *Report)
		target error
	}{
		{"missing lab", func(r *Report) { r.LabID = "" }, nil},
		{"missing test name", func(r *Report) { r.TestName = "" }, nil},
		{"bad status", func(r *Report) { r.Status = "archived" }, ErrInvalidStatus},
		{"bad gender", func(r *Report) { r.Patient.Gender = "x" }, ErrInvalidGender},
		{"bad flag", func(r *Report) { r.Results[0].Flag = "weird" }, ErrInvalidFlag},
		{"missing parameter", func(r *Report) { r.Results[0].Parameter = "" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)
			err := r.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("Expected %v in chain, got %v", tt.target, err)
			}
			if tt.target == nil {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Errorf("Expected ValidationError, got %T", err)
				}
			}
		})
	}
}

func TestAbnormalResults(t *testing.T) {
	r := &Report{Results: []ResultRow{
		{Parameter: "A", Flag: FlagNormal},
		{Parameter: "B", Flag: FlagHigh},
		{Parameter: "C", Flag: FlagCritical},
		{Parameter: "D"},
	}}

	got := r.AbnormalResults()
	if len(got) != 2 {
		t.Fatalf("Expected 2 abnormal rows, got %d", len(got))
	}
	if got[0].Parameter != "B" || got[1].Parameter != "C" {
		t.Errorf("Unexpected abnormal rows: %+v", got)
	}
}

func TestTemplateParameterLookup(t *testing.T) {
	low, high := 7.0, 20.0
	tmpl := &TestTemplate{
		LabID: "lab-1",
		Name:  "CBC",
		Sections: []TemplateSection{{
			Name: "Haemogram",
			Parameters: []TemplateParameter{
				{Name: "Hemoglobin", Unit: "g/dL", ReferenceRange: "M - 13.5 - 18.0\nF - 11.5 - 16.4", CriticalLow: &low, CriticalHigh: &high},
			},
		}},
	}

	p, ok := tmpl.Parameter("  hemoglobin ")
	if !ok {
		t.Fatal("Expected parameter to be found")
	}
	if p.Unit != "g/dL" {
		t.Errorf("Expected unit g/dL, got %s", p.Unit)
	}
	if _, ok := tmpl.Parameter("Platelets"); ok {
		t.Error("Expected missing parameter")
	}
	if err := tmpl.Validate(); err != nil {
		t.Errorf("Expected valid template, got %v", err)
	}

	inverted := 30.0
	tmpl.Sections[0].Parameters[0].CriticalLow = &inverted
	if err := tmpl.Validate(); err == nil {
		t.Error("Expected error for inverted panic limits")
	}

	var nilTmpl *TestTemplate
	if _, ok := nilTmpl.Parameter("x"); ok {
		t.Error("Expected nil template lookup to miss")
	}
}
