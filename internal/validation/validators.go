// Package validation checks intake records field by field. Validators are
// total, pure functions: every input yields either a normalized value or a
// structured FieldError, never a panic and never a side effect.
package validation

import (
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"github.com/ttacon/libphonenumber"
)

// FieldError describes one field-level rejection.
type FieldError struct {
	Field          string
	ErrorType      string
	ExpectedFormat string
	RawValue       string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s (%q)", e.Field, e.ErrorType, e.RawValue)
}

// Validator normalizes a raw value or explains why it cannot.
type Validator func(raw string) (string, *FieldError)

const (
	ErrRequired        = "required"
	ErrInvalidEmail    = "invalid_email"
	ErrInvalidPhone    = "invalid_phone"
	ErrInvalidState    = "invalid_state"
	ErrInvalidWebsite  = "invalid_website"
	ErrInvalidCount    = "invalid_employee_count"
	ErrUnknownIndustry = "unknown_industry"
)

// usStates is the USPS two-letter code set. Validation accepts only codes;
// canonicalizing full names ("california" -> "CA") is remediation's job.
var usStates = map[string]struct{}{
	"AL": {}, "AK": {}, "AZ": {}, "AR": {}, "CA": {}, "CO": {}, "CT": {},
	"DE": {}, "FL": {}, "GA": {}, "HI": {}, "ID": {}, "IL": {}, "IN": {},
	"IA": {}, "KS": {}, "KY": {}, "LA": {}, "ME": {}, "MD": {}, "MA": {},
	"MI": {}, "MN": {}, "MS": {}, "MO": {}, "MT": {}, "NE": {}, "NV": {},
	"NH": {}, "NJ": {}, "NM": {}, "NY": {}, "NC": {}, "ND": {}, "OH": {},
	"OK": {}, "OR": {}, "PA": {}, "RI": {}, "SC": {}, "SD": {}, "TN": {},
	"TX": {}, "UT": {}, "VT": {}, "VA": {}, "WA": {}, "WV": {}, "WI": {},
	"WY": {}, "DC": {},
}

// industries is the accepted vertical enumeration, lowercase.
var industries = map[string]struct{}{
	"software": {}, "finance": {}, "healthcare": {}, "manufacturing": {},
	"retail": {}, "education": {}, "energy": {}, "logistics": {},
	"media": {}, "real_estate": {}, "hospitality": {}, "other": {},
}

// Name requires a non-empty value and collapses internal whitespace.
func Name(field string) Validator {
	return func(raw string) (string, *FieldError) {
		normalized := strings.Join(strings.Fields(raw), " ")
		if normalized == "" {
			return "", &FieldError{Field: field, ErrorType: ErrRequired, ExpectedFormat: "non-empty text", RawValue: raw}
		}
		return normalized, nil
	}
}

// Email accepts RFC 5322 addresses and lowercases the result.
func Email(field string) Validator {
	return func(raw string) (string, *FieldError) {
		trimmed := strings.TrimSpace(raw)
		addr, err := mail.ParseAddress(trimmed)
		if err != nil || addr.Name != "" {
			return "", &FieldError{Field: field, ErrorType: ErrInvalidEmail, ExpectedFormat: "user@domain.tld", RawValue: raw}
		}
		domain := addr.Address[strings.LastIndex(addr.Address, "@")+1:]
		if !strings.Contains(domain, ".") {
			return "", &FieldError{Field: field, ErrorType: ErrInvalidEmail, ExpectedFormat: "user@domain.tld", RawValue: raw}
		}
		return strings.ToLower(addr.Address), nil
	}
}

// Phone parses against the US region and normalizes to E.164.
func Phone(field string) Validator {
	return func(raw string) (string, *FieldError) {
		num, err := libphonenumber.Parse(strings.TrimSpace(raw), "US")
		if err != nil || !libphonenumber.IsValidNumber(num) {
			return "", &FieldError{Field: field, ErrorType: ErrInvalidPhone, ExpectedFormat: "E.164, e.g. +14155550123", RawValue: raw}
		}
		return libphonenumber.Format(num, libphonenumber.E164), nil
	}
}

// State accepts USPS two-letter codes, case-insensitively.
func State(field string) Validator {
	return func(raw string) (string, *FieldError) {
		code := strings.ToUpper(strings.TrimSpace(raw))
		if _, ok := usStates[code]; !ok {
			return "", &FieldError{Field: field, ErrorType: ErrInvalidState, ExpectedFormat: "USPS two-letter code", RawValue: raw}
		}
		return code, nil
	}
}

// Website requires an absolute http(s) URL with a dotted host.
func Website(field string) Validator {
	return func(raw string) (string, *FieldError) {
		trimmed := strings.TrimSpace(raw)
		u, err := url.Parse(trimmed)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || !strings.Contains(u.Host, ".") {
			return "", &FieldError{Field: field, ErrorType: ErrInvalidWebsite, ExpectedFormat: "https://host.tld", RawValue: raw}
		}
		u.Host = strings.ToLower(u.Host)
		return u.String(), nil
	}
}

// EmployeeCount accepts integers in [1, 1_000_000].
func EmployeeCount(field string) Validator {
	return func(raw string) (string, *FieldError) {
		n, err := strconv.Atoi(strings.TrimSpace(strings.ReplaceAll(raw, ",", "")))
		if err != nil || n < 1 || n > 1_000_000 {
			return "", &FieldError{Field: field, ErrorType: ErrInvalidCount, ExpectedFormat: "integer between 1 and 1000000", RawValue: raw}
		}
		return strconv.Itoa(n), nil
	}
}

// Industry accepts the known vertical enumeration, case-insensitively.
func Industry(field string) Validator {
	return func(raw string) (string, *FieldError) {
		normalized := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(raw, " ", "_")))
		if _, ok := industries[normalized]; !ok {
			return "", &FieldError{Field: field, ErrorType: ErrUnknownIndustry, ExpectedFormat: "known industry vertical", RawValue: raw}
		}
		return normalized, nil
	}
}

// Optional wraps a validator so an empty raw value passes through as empty
// instead of failing.
func Optional(v Validator) Validator {
	return func(raw string) (string, *FieldError) {
		if strings.TrimSpace(raw) == "" {
			return "", nil
		}
		return v(raw)
	}
}
