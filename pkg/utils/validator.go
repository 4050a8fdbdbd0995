package utils

import (
	"fmt"
	"regexp"
)

var (
	usernameRegex     = regexp.MustCompile(`^[a-z0-9_.\-]{3,32}$`)
	ticketNumberRegex = regexp.MustCompile(`^PD-\d{4}\d{2,}$`)
	controlCharRegex  = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidateUsername validates a login username
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("invalid username format: %s", username)
	}
	return nil
}

// ValidateTicketNumber validates the PD-YYYY## ticket number format
func ValidateTicketNumber(number string) error {
	if !ticketNumberRegex.MatchString(number) {
		return fmt.Errorf("invalid ticket number format: %s", number)
	}
	return nil
}

// SanitizeString strips control characters from free-text input
func SanitizeString(s string) string {
	return controlCharRegex.ReplaceAllString(s, "")
}
