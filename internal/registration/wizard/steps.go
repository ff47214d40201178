// internal/registration/wizard/steps.go
package wizard

import (
	"strconv"
	"time"

	"msad-registration/internal/models"
	"msad-registration/internal/registration/validator"
)

// TotalSteps is the length of the contestant registration wizard.
const TotalSteps = 4

// CheckFunc evaluates one field. Derived holds values the caller stores back
// into the draft when the check passes; it may be nil.
type CheckFunc func(value string, draft models.FormDraft) (res validator.Result, derived map[string]string)

// FieldRule is a custom constraint bound to a single field. It only runs when
// the field holds a non-blank value.
type FieldRule struct {
	Field string
	Kind  validator.Kind
	Check CheckFunc
}

// StepDefinition describes one screen of the wizard.
type StepDefinition struct {
	Index          int         `json:"index"`
	Title          string      `json:"title"`
	RequiredFields []string    `json:"requiredFields"`
	Rules          []FieldRule `json:"-"`
}

type stepOptions struct {
	minAge   int
	maxAge   int
	minWords int
	now      func() time.Time
}

// StepOption tunes DefaultSteps.
type StepOption func(*stepOptions)

// WithAgeRange sets the inclusive contestant age bounds.
func WithAgeRange(minAge, maxAge int) StepOption {
	return func(o *stepOptions) {
		o.minAge = minAge
		o.maxAge = maxAge
	}
}

// WithMinWords sets the word minimum for the free-text answers.
func WithMinWords(n int) StepOption {
	return func(o *stepOptions) { o.minWords = n }
}

// WithClock replaces time.Now for age evaluation.
func WithClock(now func() time.Time) StepOption {
	return func(o *stepOptions) { o.now = now }
}

// DefaultSteps returns the four registration steps.
func DefaultSteps(opts ...StepOption) []StepDefinition {
	o := stepOptions{minAge: 18, maxAge: 30, minWords: 50, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return []StepDefinition{
		{
			Index:          1,
			Title:          "Personal details",
			RequiredFields: []string{"firstName", "lastName", "dateOfBirth", "phone"},
			Rules: []FieldRule{
				{Field: "dateOfBirth", Kind: validator.KindAgeRange, Check: ageRule(o)},
				{Field: "phone", Kind: validator.KindPhone, Check: simple(validator.Phone)},
			},
		},
		{
			Index:          2,
			Title:          "Contact & location",
			RequiredFields: []string{"email", "province", "city", "address", "emergencyContactName", "emergencyContactPhone"},
			Rules: []FieldRule{
				{Field: "email", Kind: validator.KindEmail, Check: simple(validator.Email)},
				{Field: "emergencyContactPhone", Kind: validator.KindPhone, Check: simple(validator.Phone)},
				{Field: "city", Kind: validator.KindProvinceCity, Check: provinceCityRule},
			},
		},
		{
			Index:          3,
			Title:          "About you",
			RequiredFields: []string{"disabilityType", "platformCause", "whyCompete"},
			Rules: []FieldRule{
				{Field: "platformCause", Kind: validator.KindMinWordCount, Check: wordRule(o.minWords)},
				{Field: "whyCompete", Kind: validator.KindMinWordCount, Check: wordRule(o.minWords)},
			},
		},
		{
			Index:          4,
			Title:          "Documents & declaration",
			RequiredFields: []string{models.URLFieldFor("photo"), "termsAccepted"},
		},
	}
}

func simple(fn func(string) validator.Result) CheckFunc {
	return func(value string, _ models.FormDraft) (validator.Result, map[string]string) {
		return fn(value), nil
	}
}

func ageRule(o stepOptions) CheckFunc {
	return func(value string, _ models.FormDraft) (validator.Result, map[string]string) {
		res, age := validator.AgeRange(value, o.now(), o.minAge, o.maxAge)
		if !res.Valid {
			return res, nil
		}
		return res, map[string]string{"age": strconv.Itoa(age)}
	}
}

func wordRule(n int) CheckFunc {
	return func(value string, _ models.FormDraft) (validator.Result, map[string]string) {
		return validator.MinWordCount(value, n), nil
	}
}

func provinceCityRule(value string, draft models.FormDraft) (validator.Result, map[string]string) {
	// Without a province the required check on province reports the problem.
	if !draft.Has("province") {
		return validator.Result{Valid: true}, nil
	}
	return validator.ProvinceCity(draft.Trimmed("province"), value), nil
}
