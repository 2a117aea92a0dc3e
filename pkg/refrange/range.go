// Package refrange interprets the free-text reference ranges lab staff write
// on report templates ("10-20", "Up to 140 mg%", "M - 13.5 - 18.0 F - 11.5 - 16.4",
// "<5", "Non Reactive") and classifies a measured value against them.
//
// The heuristics are deliberately conservative: anything that cannot be
// interpreted is reported as normal, and the Result says which rule decided.
package refrange

import (
	"fmt"

	"github.com/pathlab-mcp-server/internal/domain"
)

// Rule names the step of the decision procedure that produced a flag.
type Rule string

const (
	RuleEmptyInput        Rule = "empty_input"
	RuleSerology          Rule = "serology"
	RuleCategorical       Rule = "categorical"
	RuleGenderSplit       Rule = "gender_split"
	RuleCRPThreshold      Rule = "crp_threshold"
	RuleNumericRange      Rule = "numeric_range"
	RuleUpTo              Rule = "up_to"
	RuleLessThanSymbol    Rule = "less_than_symbol"
	RuleGreaterThanSymbol Rule = "greater_than_symbol"
	RuleLessThanText      Rule = "less_than_text"
	RuleTextRange         Rule = "text_range"
	RuleUnparseable       Rule = "unparseable"
)

// Observation is a measured value after numeric coercion.
type Observation struct {
	Raw    string
	Number float64
	Gender domain.Gender
}

// Range is a parsed reference range. Each implementation corresponds to one
// rule of the decision procedure.
type Range interface {
	Rule() Rule
	Evaluate(obs Observation) (domain.Flag, string)
	String() string
}

// GenderSplitRange carries separate male and female intervals.
type GenderSplitRange struct {
	MaleMin, MaleMax     float64
	FemaleMin, FemaleMax float64
}

func (r GenderSplitRange) Rule() Rule { return RuleGenderSplit }

// Bounds returns the interval that applies to the given gender. Patients with
// no recorded gender (or "other") are checked against the union of both.
func (r GenderSplitRange) Bounds(g domain.Gender) (float64, float64) {
	switch g {
	case domain.GenderMale:
		return r.MaleMin, r.MaleMax
	case domain.GenderFemale:
		return r.FemaleMin, r.FemaleMax
	default:
		return min(r.MaleMin, r.FemaleMin), max(r.MaleMax, r.FemaleMax)
	}
}

func (r GenderSplitRange) Evaluate(obs Observation) (domain.Flag, string) {
	lo, hi := r.Bounds(obs.Gender)
	who := string(obs.Gender)
	if who == "" || obs.Gender == domain.GenderOther {
		who = "combined"
	}
	return between(obs.Number, lo, hi), fmt.Sprintf("%s interval %g-%g", who, lo, hi)
}

func (r GenderSplitRange) String() string {
	return fmt.Sprintf("M %g-%g / F %g-%g", r.MaleMin, r.MaleMax, r.FemaleMin, r.FemaleMax)
}

// CRPThreshold is any range containing "less than 6", the phrasing used for
// C-reactive protein. The cutoff stays 6 even for "less than 6.5" or "less than 60".
type CRPThreshold struct{}

func (CRPThreshold) Rule() Rule { return RuleCRPThreshold }

func (CRPThreshold) Evaluate(obs Observation) (domain.Flag, string) {
	if obs.Number >= crpCutoff {
		return domain.FlagHigh, fmt.Sprintf("CRP %g at or above %g", obs.Number, crpCutoff)
	}
	return domain.FlagNormal, fmt.Sprintf("CRP %g below %g", obs.Number, crpCutoff)
}

func (CRPThreshold) String() string { return fmt.Sprintf("< %g (CRP)", crpCutoff) }

// NumericRange is an inclusive interval such as "10-20".
type NumericRange struct {
	Min, Max float64
}

func (r NumericRange) Rule() Rule { return RuleNumericRange }

func (r NumericRange) Evaluate(obs Observation) (domain.Flag, string) {
	return between(obs.Number, r.Min, r.Max), fmt.Sprintf("interval %g-%g", r.Min, r.Max)
}

func (r NumericRange) String() string { return fmt.Sprintf("%g-%g", r.Min, r.Max) }

// UpperBound is "Up to N": only values strictly above N are high.
type UpperBound struct {
	Max float64
}

func (r UpperBound) Rule() Rule { return RuleUpTo }

func (r UpperBound) Evaluate(obs Observation) (domain.Flag, string) {
	if obs.Number > r.Max {
		return domain.FlagHigh, fmt.Sprintf("above ceiling %g", r.Max)
	}
	return domain.FlagNormal, fmt.Sprintf("within ceiling %g", r.Max)
}

func (r UpperBound) String() string { return fmt.Sprintf("up to %g", r.Max) }

// UpperBoundExclusive is "< N": the bound itself is already high.
type UpperBoundExclusive struct {
	Limit float64
}

func (r UpperBoundExclusive) Rule() Rule { return RuleLessThanSymbol }

func (r UpperBoundExclusive) Evaluate(obs Observation) (domain.Flag, string) {
	if obs.Number >= r.Limit {
		return domain.FlagHigh, fmt.Sprintf("at or above %g", r.Limit)
	}
	return domain.FlagNormal, fmt.Sprintf("below %g", r.Limit)
}

func (r UpperBoundExclusive) String() string { return fmt.Sprintf("< %g", r.Limit) }

// LowerBoundExclusive is "> N": the bound itself is already low.
type LowerBoundExclusive struct {
	Limit float64
}

func (r LowerBoundExclusive) Rule() Rule { return RuleGreaterThanSymbol }

func (r LowerBoundExclusive) Evaluate(obs Observation) (domain.Flag, string) {
	if obs.Number <= r.Limit {
		return domain.FlagLow, fmt.Sprintf("at or below %g", r.Limit)
	}
	return domain.FlagNormal, fmt.Sprintf("above %g", r.Limit)
}

func (r LowerBoundExclusive) String() string { return fmt.Sprintf("> %g", r.Limit) }

// LessThanText is any "less than N" phrasing other than the CRP one.
type LessThanText struct {
	Limit float64
}

func (r LessThanText) Rule() Rule { return RuleLessThanText }

func (r LessThanText) Evaluate(obs Observation) (domain.Flag, string) {
	if obs.Number >= r.Limit {
		return domain.FlagHigh, fmt.Sprintf("not less than %g", r.Limit)
	}
	return domain.FlagNormal, fmt.Sprintf("less than %g", r.Limit)
}

func (r LessThanText) String() string { return fmt.Sprintf("less than %g", r.Limit) }

// TextRange is a purely textual range ("Negative", "Non Reactive", "Absent").
// A numeric value is never flagged against it; whether or not the value
// matches the text, the result is normal.
type TextRange struct {
	Text string
}

func (r TextRange) Rule() Rule { return RuleTextRange }

func (r TextRange) Evaluate(obs Observation) (domain.Flag, string) {
	if equalFold(obs.Raw, r.Text) {
		return domain.FlagNormal, "value matches textual range"
	}
	return domain.FlagNormal, "textual range mismatch defaults to normal"
}

func (r TextRange) String() string { return r.Text }

// Unparseable holds range text that contains numbers but matched no pattern.
type Unparseable struct {
	Text string
}

func (r Unparseable) Rule() Rule { return RuleUnparseable }

func (r Unparseable) Evaluate(Observation) (domain.Flag, string) {
	return domain.FlagNormal, "reference range not understood"
}

func (r Unparseable) String() string { return r.Text }

func between(v, lo, hi float64) domain.Flag {
	switch {
	case v < lo:
		return domain.FlagLow
	case v > hi:
		return domain.FlagHigh
	default:
		return domain.FlagNormal
	}
}
