package sanitizer

import (
	"errors"
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var (
	ErrInvalidPhone = errors.New("phone number cannot be parsed")

	reE164 = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)
)

// NormalizePhone parses phone in defaultRegion (numbers with a leading + ignore it)
// and returns the E.164 form. An empty input stays empty.
func NormalizePhone(phone, defaultRegion string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", nil
	}

	parsed, err := phonenumbers.Parse(phone, strings.ToUpper(defaultRegion))
	if err != nil {
		return "", ErrInvalidPhone
	}

	formatted := phonenumbers.Format(parsed, phonenumbers.E164)
	if !reE164.MatchString(formatted) {
		return "", ErrInvalidPhone
	}
	return formatted, nil
}
