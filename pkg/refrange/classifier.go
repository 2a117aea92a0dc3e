package refrange

import (
	"strings"

	"github.com/pathlab-mcp-server/internal/domain"
)

// Result is the outcome of classifying one result row.
type Result struct {
	Flag   domain.Flag `json:"flag"`
	Rule   Rule        `json:"rule"`
	Reason string      `json:"reason"`
	Range  Range       `json:"-"`
}

// Parsed reports whether the flag came from an interpreted numeric range
// rather than one of the normal-by-default fallbacks.
func (r Result) Parsed() bool {
	switch r.Rule {
	case RuleEmptyInput, RuleCategorical, RuleTextRange, RuleUnparseable:
		return false
	default:
		return true
	}
}

// Flag classifies value against referenceRange and returns only the flag.
func Flag(value, referenceRange, gender string) domain.Flag {
	return Classify(value, referenceRange, gender).Flag
}

// Classify runs the ordered decision procedure. The first matching step wins:
//
//  1. empty value or range
//  2. reactive/positive value against a non-reactive/negative range
//  3. non-numeric (categorical) value
//  4. onwards: the parsed range, see Parse
//
// It never returns FlagCritical; panic-limit escalation is the caller's job.
// Classify is pure and safe for concurrent use.
func Classify(value, referenceRange, gender string) Result {
	if value == "" || referenceRange == "" {
		return Result{Flag: domain.FlagNormal, Rule: RuleEmptyInput, Reason: "value or reference range missing"}
	}

	v := strings.ToLower(strings.TrimSpace(value))
	rr := strings.ToLower(strings.TrimSpace(referenceRange))

	if negativeBaseline(rr) && positiveResult(v) {
		return Result{Flag: domain.FlagHigh, Rule: RuleSerology, Reason: "reactive result against non-reactive baseline"}
	}

	num, ok := ParseValue(value)
	if !ok {
		return Result{Flag: domain.FlagNormal, Rule: RuleCategorical, Reason: categoricalReason(v, rr)}
	}

	parsed := Parse(referenceRange)
	flag, reason := parsed.Evaluate(Observation{
		Raw:    value,
		Number: num,
		Gender: domain.ParseGender(gender),
	})
	return Result{Flag: flag, Rule: parsed.Rule(), Reason: reason, Range: parsed}
}

var negatedReactive = []string{"non reactive", "non-reactive", "nonreactive", "not reactive"}

// negativeBaseline only knows "non reactive" and "negative"; a hyphenated
// "Non-Reactive" range is left to the categorical rule.
func negativeBaseline(rr string) bool {
	return strings.Contains(rr, "non reactive") || strings.Contains(rr, "negative")
}

// positiveResult treats "Non Reactive" as a negative result even though it
// contains the word "reactive".
func positiveResult(v string) bool {
	if strings.Contains(v, "positive") {
		return true
	}
	if !strings.Contains(v, "reactive") {
		return false
	}
	for _, n := range negatedReactive {
		if strings.Contains(v, n) {
			return false
		}
	}
	return true
}

func categoricalReason(v, rr string) string {
	switch {
	case v == rr && (v == "absent" || v == "negative" || v == "non reactive"):
		return "categorical value matches reference"
	case lettersOnly.MatchString(v):
		return "categorical value"
	default:
		return "value is not numeric"
	}
}
