package eligibility

import (
	"strings"
	"unicode"
)

const identityLength = 12

// ValidateIdentityNumber checks the format of a 12-digit national identity
// number and returns it with separators removed.
//
// Everything that is not a digit is stripped first, so "2345 6789 0123" is
// accepted while "23a456789012" fails on length.
func ValidateIdentityNumber(s string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)

	if len([]rune(digits)) != identityLength {
		return "", identityRejection(WrongLength)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			// unicode digits from other scripts survive the strip
			return "", identityRejection(NonDigitCharacters)
		}
	}
	if digits[0] == '0' || digits[0] == '1' {
		return "", identityRejection(InvalidLeadingDigit)
	}
	return digits, nil
}

func identityRejection(sub Reason) *Rejection {
	return &Rejection{Reason: InvalidIdentityFormat, Sub: sub}
}
