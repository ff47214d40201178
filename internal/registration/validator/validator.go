// internal/registration/validator/validator.go
// Package validator implements the field constraints checked by the
// registration wizard. Every check is a pure function of its input.
package validator

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Kind names a field constraint.
type Kind string

const (
	KindRequired     Kind = "required"
	KindEmail        Kind = "email"
	KindPhone        Kind = "phone"
	KindAgeRange     Kind = "age-range"
	KindMinWordCount Kind = "min-word-count"
	KindProvinceCity Kind = "province-city"
)

// DateLayout is the wire format of date-of-birth values.
const DateLayout = "2006-01-02"

const (
	MsgRequired     = "This field is required"
	MsgEmail        = "Please enter a valid email address"
	MsgPhone        = "Please enter a valid South African phone number"
	MsgProvinceCity = "Please select a city in the selected province"
	MsgUnknownRule  = "This field cannot be checked on its own"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^(\+27|0)[0-9]{9}$`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// Result is the outcome of one check. Message is empty when Valid.
type Result struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

func ok() Result { return Result{Valid: true} }

func fail(msg string) Result { return Result{Valid: false, Message: msg} }

// Required fails when the trimmed value is empty.
func Required(value string) Result {
	if strings.TrimSpace(value) == "" {
		return fail(MsgRequired)
	}
	return ok()
}

// Email checks a simple local@domain.tld shape.
func Email(value string) Result {
	if !emailPattern.MatchString(strings.TrimSpace(value)) {
		return fail(MsgEmail)
	}
	return ok()
}

// Phone accepts +27 or 0 followed by nine digits once whitespace is removed.
func Phone(value string) Result {
	if !phonePattern.MatchString(whitespace.ReplaceAllString(value, "")) {
		return fail(MsgPhone)
	}
	return ok()
}

// Age returns the number of completed years between dob and now, comparing
// calendar dates only.
func Age(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}

// ParseDate parses a date-of-birth value.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(value))
}

// AgeRange checks that the age implied by a date of birth lies in
// [minAge, maxAge] as of now. The computed age is returned so the caller can
// store it; it is -1 when the date cannot be parsed.
func AgeRange(value string, now time.Time, minAge, maxAge int) (Result, int) {
	dob, err := ParseDate(value)
	if err != nil {
		return fail(ageMessage(minAge, maxAge)), -1
	}
	age := Age(dob, now)
	if age < minAge || age > maxAge {
		return fail(ageMessage(minAge, maxAge)), age
	}
	return ok(), age
}

func ageMessage(minAge, maxAge int) string {
	return fmt.Sprintf("Age must be between %d and %d years", minAge, maxAge)
}

// WordCount counts whitespace-separated tokens of the trimmed value.
func WordCount(value string) int {
	return len(strings.Fields(value))
}

// MinWordCount fails when value has fewer than n words.
func MinWordCount(value string, n int) Result {
	if WordCount(value) < n {
		return fail(fmt.Sprintf("Please provide at least %d words", n))
	}
	return ok()
}

// ProvinceCity fails when city is not listed under province.
func ProvinceCity(province, city string) Result {
	for _, c := range CitiesFor(province) {
		if c.Value == strings.TrimSpace(city) {
			return ok()
		}
	}
	return fail(MsgProvinceCity)
}

// Check runs the single-value constraint kind against value. Age-range and
// min-word-count use the package defaults. Province-city needs the province
// and, like unknown kinds, always fails here; use ProvinceCity instead.
func Check(kind Kind, value string) Result {
	switch kind {
	case KindRequired:
		return Required(value)
	case KindEmail:
		return Email(value)
	case KindPhone:
		return Phone(value)
	case KindAgeRange:
		r, _ := AgeRange(value, time.Now(), 18, 30)
		return r
	case KindMinWordCount:
		return MinWordCount(value, 50)
	default:
		return fail(MsgUnknownRule)
	}
}
