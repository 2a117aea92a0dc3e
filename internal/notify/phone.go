package notify

import (
	"errors"
	"regexp"
	"strings"

	"go.mau.fi/whatsmeow/types"
)

var nonDigitRegex = regexp.MustCompile(`[^\d]`)

// ErrInvalidPhone is returned for numbers that cannot be turned into an
// international MSISDN.
var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone returns the number as international digits without a
// leading plus. Numbers written without a country code get defaultRegion
// (a calling code such as "91") prepended; a single trunk "0" is dropped.
func NormalizePhone(phone, defaultRegion string) (string, error) {
	trimmed := strings.TrimSpace(phone)
	international := strings.HasPrefix(trimmed, "+") || strings.HasPrefix(trimmed, "00")

	digits := nonDigitRegex.ReplaceAllString(trimmed, "")
	switch {
	case strings.HasPrefix(trimmed, "00"):
		digits = strings.TrimPrefix(digits, "00")
	case !international && strings.HasPrefix(digits, "0"):
		digits = strings.TrimPrefix(digits, "0")
		digits = defaultRegion + digits
	case !international && len(digits) <= 10:
		digits = defaultRegion + digits
	}

	// E.164 allows at most 15 digits
	if len(digits) < 8 || len(digits) > 15 {
		return "", ErrInvalidPhone
	}
	return digits, nil
}

// PhoneToJID converts a phone number to a WhatsApp user JID.
func PhoneToJID(phone, defaultRegion string) (types.JID, error) {
	digits, err := NormalizePhone(phone, defaultRegion)
	if err != nil {
		return types.EmptyJID, err
	}
	return types.NewJID(digits, types.DefaultUserServer), nil
}
