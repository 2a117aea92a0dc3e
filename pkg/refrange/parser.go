package refrange

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

const crpCutoff float64 = 6

// Reference range patterns, tried in Parse in the order listed.
var (
	genderSplitPattern = regexp.MustCompile(`(?is)\bm(?:ale)?\s*[-:]\s*(\d+(?:\.\d+)?)\s*[-–]\s*(\d+(?:\.\d+)?).*?\bf(?:emale)?\s*[-:]\s*(\d+(?:\.\d+)?)\s*[-–]\s*(\d+(?:\.\d+)?)`)
	crpPattern         = regexp.MustCompile(`(?i)less than 6`)
	dashRangePattern   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:–|--|-)\s*(\d+(?:\.\d+)?)`)
	upToPattern        = regexp.MustCompile(`(?i)up\s*to\s*(\d+(?:\.\d+)?)`)
	lessThanPattern    = regexp.MustCompile(`<\s*=?\s*(\d+(?:\.\d+)?)`)
	greaterThanPattern = regexp.MustCompile(`>\s*=?\s*(\d+(?:\.\d+)?)`)
	lessThanText       = regexp.MustCompile(`(?i)less\s+than\s+(\d+(?:\.\d+)?)`)
	hasDigit           = regexp.MustCompile(`\d`)

	// parseFloat semantics: longest numeric prefix after leading whitespace.
	leadingNumber = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)(?:[eE][+-]?\d+)?`)
	lettersOnly   = regexp.MustCompile(`^[a-zA-Z\s]+$`)
)

// Parse interprets reference range text. It never fails: text that matches
// no numeric pattern becomes a TextRange or an Unparseable.
func Parse(referenceRange string) Range {
	text := strings.TrimSpace(referenceRange)
	numeric := strings.ReplaceAll(text, ",", "")

	if m := genderSplitPattern.FindStringSubmatch(numeric); m != nil {
		return GenderSplitRange{
			MaleMin:   mustFloat(m[1]),
			MaleMax:   mustFloat(m[2]),
			FemaleMin: mustFloat(m[3]),
			FemaleMax: mustFloat(m[4]),
		}
	}
	if crpPattern.MatchString(text) {
		return CRPThreshold{}
	}
	if m := dashRangePattern.FindStringSubmatch(numeric); m != nil {
		return NumericRange{Min: mustFloat(m[1]), Max: mustFloat(m[2])}
	}
	if m := upToPattern.FindStringSubmatch(numeric); m != nil {
		return UpperBound{Max: mustFloat(m[1])}
	}
	if m := lessThanPattern.FindStringSubmatch(numeric); m != nil {
		return UpperBoundExclusive{Limit: mustFloat(m[1])}
	}
	if m := greaterThanPattern.FindStringSubmatch(numeric); m != nil {
		return LowerBoundExclusive{Limit: mustFloat(m[1])}
	}
	if m := lessThanText.FindStringSubmatch(numeric); m != nil {
		return LessThanText{Limit: mustFloat(m[1])}
	}
	if !hasDigit.MatchString(text) {
		return TextRange{Text: text}
	}
	return Unparseable{Text: text}
}

// ParseValue coerces a measured value to a number the way lab staff type it:
// thousands separators and inequality signs are dropped, and trailing units
// are ignored ("12.5 g/dL" is 12.5).
func ParseValue(value string) (float64, bool) {
	cleaned := strings.NewReplacer(",", "", "<", "", ">", "").Replace(value)
	m := leadingNumber.FindString(strings.TrimSpace(cleaned))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return f, true
}

// mustFloat converts a string already matched by one of the numeric patterns.
func mustFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
