package services

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/tablegate/tablegate/internal/models"
)

// Parameter format classes for gateway actions. Validation is the gate;
// bound SQL parameters in the repositories are the actual injection defense.
// Sanitization on top is belt-and-suspenders for values that end up inside
// composed filter expressions.

const (
	maxLabelLength = 64
	maxTextLength  = 2000

	minPhoneDigits = 7
	maxPhoneDigits = 15
)

// labelPattern allows letters (including accented), digits, space, hyphen and
// underscore.
var labelPattern = regexp.MustCompile(`^[\p{L}\p{N} _-]+$`)

// ValidateIdentifier requires a canonical UUID.
func ValidateIdentifier(field, value string) error {
	if value == "" {
		return models.NewFieldError(field, "is required")
	}
	if _, err := uuid.Parse(value); err != nil {
		return models.NewFieldError(field, "must be a valid UUID")
	}
	return nil
}

// ValidatePhone requires an international-style phone number: an optional
// leading +, then 7 to 15 digits. Spaces are ignored.
func ValidatePhone(field, value string) error {
	if value == "" {
		return models.NewFieldError(field, "is required")
	}

	cleaned := strings.ReplaceAll(value, " ", "")
	cleaned = strings.TrimPrefix(cleaned, "+")
	if len(cleaned) < minPhoneDigits || len(cleaned) > maxPhoneDigits {
		return models.NewFieldError(field, "must contain 7 to 15 digits")
	}
	for _, c := range cleaned {
		if c < '0' || c > '9' {
			return models.NewFieldError(field, "must contain only digits after an optional +")
		}
	}
	return nil
}

// ValidateLabel requires a short category-style label.
func ValidateLabel(field, value string) error {
	if value == "" {
		return models.NewFieldError(field, "is required")
	}
	if len(value) > maxLabelLength {
		return models.NewFieldError(field, "must be at most 64 characters")
	}
	if !labelPattern.MatchString(value) {
		return models.NewFieldError(field, "contains invalid characters")
	}
	return nil
}

// ValidateText requires bounded free text.
func ValidateText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return models.NewFieldError(field, "is required")
	}
	if len(value) > maxTextLength {
		return models.NewFieldError(field, "must be at most 2000 characters")
	}
	return nil
}

// SanitizeFilterValue strips characters with meaning in composed filter
// expressions: quotes, parentheses, percent and backslash. Applied after
// format validation to values forwarded into lookup filters; repositories
// still bind every value as a parameter.
func SanitizeFilterValue(value string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\'', '"', '`', '(', ')', '%', '\\':
			return -1
		}
		return r
	}, value)
}
