package service

import (
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathlab-mcp-server/internal/domain"
	"github.com/pathlab-mcp-server/pkg/refrange"
)

func newFlagService(t *testing.T, memo int, escalate bool) *FlagService {
	t.Helper()
	logger, _ := test.NewNullLogger()
	s, err := NewFlagService(domain.ClassifierConfig{MemoSize: memo, CriticalEscalate: escalate}, logger)
	require.NoError(t, err)
	return s
}

func TestFlagService_ClassifyMatchesClassifier(t *testing.T) {
	cases := []struct {
		value, rr, gender string
	}{
		{"10", "M - 13.5 - 18.0\nF - 11.5 - 16.4", "male"},
		{"12", "M - 13.5 - 18.0\nF - 11.5 - 16.4", "Female"},
		{"Reactive", "Non Reactive", ""},
		{"7", "less than 6", ""},
		{"Trace", "Negative", ""},
		{"", "10-20", ""},
	}

	for _, memo := range []int{0, 16} {
		s := newFlagService(t, memo, false)
		for _, c := range cases {
			want := refrange.Classify(c.value, c.rr, c.gender)
			// twice, so the second call exercises the memo
			assert.Equal(t, want.Flag, s.Classify(c.value, c.rr, c.gender).Flag)
			assert.Equal(t, want.Flag, s.Classify(c.value, c.rr, c.gender).Flag)
		}
	}
}

func TestFlagService_MemoKeysOnNormalisedGender(t *testing.T) {
	s := newFlagService(t, 16, false)

	s.Classify("12", "M - 13.5 - 18.0\nF - 11.5 - 16.4", "M")
	s.Classify("12", "M - 13.5 - 18.0\nF - 11.5 - 16.4", "male")
	assert.Equal(t, 1, s.memo.Len())

	s.Classify("12", "M - 13.5 - 18.0\nF - 11.5 - 16.4", "F")
	assert.Equal(t, 2, s.memo.Len())
}

func TestFlagService_FlagRows(t *testing.T) {
	s := newFlagService(t, 64, true)
	tmpl := cbcTemplate()

	rows := []domain.ResultRow{
		{Parameter: "Hemoglobin", Value: "10"},
		{Parameter: "hemoglobin ", Value: "6.5"},
		{Parameter: "Platelet Count", Value: "1,200,000"},
		{Parameter: "Platelet Count", Value: "500000"},
		{Parameter: "Neutrophils", Value: "60"},
		{Parameter: "ESR", Value: "30", ReferenceRange: "Up to 20", Unit: "mm/hr"},
	}

	out := s.FlagRows(rows, domain.GenderMale, tmpl)
	require.Len(t, out, len(rows))

	assert.Equal(t, domain.FlagLow, out[0].Flag)
	assert.Equal(t, "g/dL", out[0].Unit)
	assert.Equal(t, tmpl.Sections[0].Parameters[0].ReferenceRange, out[0].ReferenceRange)
	assert.Equal(t, string(refrange.RuleGenderSplit), out[0].Rule)

	assert.Equal(t, domain.FlagCritical, out[1].Flag, "below critical_low escalates")
	assert.Equal(t, domain.FlagCritical, out[2].Flag, "at or above critical_high escalates")
	assert.Equal(t, domain.FlagHigh, out[3].Flag)
	assert.Equal(t, domain.FlagNormal, out[4].Flag)
	assert.Equal(t, domain.FlagHigh, out[5].Flag)
	assert.Equal(t, "mm/hr", out[5].Unit)

	assert.Equal(t, 5, CountAbnormal(out))
	assert.Empty(t, rows[0].Flag, "input rows are not modified")
}

func TestFlagService_NoEscalationWhenDisabled(t *testing.T) {
	s := newFlagService(t, 0, false)
	out := s.FlagRows([]domain.ResultRow{{Parameter: "Hemoglobin", Value: "6.5"}}, domain.GenderMale, cbcTemplate())
	assert.Equal(t, domain.FlagLow, out[0].Flag)
}

func TestFlagService_NilTemplate(t *testing.T) {
	s := newFlagService(t, 0, true)
	out := s.FlagRows([]domain.ResultRow{
		{Parameter: "Hemoglobin", Value: "10", ReferenceRange: "13.5 - 18"},
		{Parameter: "Glucose", Value: "90"},
	}, "", nil)

	assert.Equal(t, domain.FlagLow, out[0].Flag)
	assert.Equal(t, domain.FlagNormal, out[1].Flag)
	assert.Equal(t, string(refrange.RuleEmptyInput), out[1].Rule)
}

func TestFlagService_Concurrent(t *testing.T) {
	s := newFlagService(t, 8, true)
	tmpl := cbcTemplate()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				out := s.FlagRows([]domain.ResultRow{{Parameter: "Hemoglobin", Value: "10"}}, domain.GenderFemale, tmpl)
				assert.Equal(t, domain.FlagLow, out[0].Flag)
			}
		}()
	}
	wg.Wait()
}
