// internal/registration/wizard/navigator.go
package wizard

import (
	"errors"
	"fmt"

	"msad-registration/internal/models"
	"msad-registration/internal/registration/validator"
)

var (
	ErrStepOutOfRange = errors.New("STEP_OUT_OF_RANGE")
	ErrStepNotReached = errors.New("STEP_NOT_COMPLETED")
)

// FieldErrors maps a field name to its single error message.
type FieldErrors map[string]string

// StepOutcome reports the result of evaluating one step.
type StepOutcome struct {
	Step     int               `json:"step"`
	Advanced bool              `json:"advanced"`
	Errors   FieldErrors       `json:"errors,omitempty"`
	Derived  map[string]string `json:"derived,omitempty"`
}

// Valid reports whether the evaluated step had no errors.
func (o StepOutcome) Valid() bool { return len(o.Errors) == 0 }

// Navigator tracks the active step of one registration session and gates
// forward movement on that step's validation.
type Navigator struct {
	steps  []StepDefinition
	step   int
	errors FieldErrors
}

// New returns a navigator positioned on step 1.
func New(steps []StepDefinition) *Navigator {
	return &Navigator{steps: steps, step: 1, errors: FieldErrors{}}
}

// WithStep positions n on step, for sessions restored from a client.
func (n *Navigator) WithStep(step int) (*Navigator, error) {
	if err := n.Goto(step); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Navigator) Current() int { return n.step }

func (n *Navigator) Total() int { return len(n.steps) }

// Steps returns the step definitions.
func (n *Navigator) Steps() []StepDefinition { return n.steps }

// Errors returns a copy of the errors attached by the last failed move.
func (n *Navigator) Errors() FieldErrors {
	out := make(FieldErrors, len(n.errors))
	for k, v := range n.errors {
		out[k] = v
	}
	return out
}

// Next validates the current step against draft. Values derived by passing
// rules (the computed age) are written into draft even when another field
// fails. The step advances only when every field passes.
func (n *Navigator) Next(draft models.FormDraft) StepOutcome {
	out := n.evaluate(n.step, draft)
	for k, v := range out.Derived {
		draft.Set(k, v)
	}
	if !out.Valid() {
		n.errors = out.Errors
		out.Step = n.step
		return out
	}

	n.errors = FieldErrors{}
	if n.step < n.Total() {
		n.step++
		out.Advanced = true
	}
	out.Step = n.step
	return out
}

// Previous moves back one step without validation.
func (n *Navigator) Previous() int {
	if n.step > 1 {
		n.step--
	}
	n.errors = FieldErrors{}
	return n.step
}

// Goto jumps to step unconditionally. The submission sweep uses it to land
// on the first failing step.
func (n *Navigator) Goto(step int) error {
	if step < 1 || step > n.Total() {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrStepOutOfRange, step, n.Total())
	}
	n.step = step
	return nil
}

// Completed reports whether step lies behind the current one.
func (n *Navigator) Completed(step int) bool {
	return step >= 1 && step < n.step
}

// GotoCompleted jumps back to an already completed step, as a step
// indicator would.
func (n *Navigator) GotoCompleted(step int) error {
	if !n.Completed(step) {
		return fmt.Errorf("%w: %d", ErrStepNotReached, step)
	}
	n.errors = FieldErrors{}
	return n.Goto(step)
}

// Validate runs step's rules against draft without moving.
func (n *Navigator) Validate(step int, draft models.FormDraft) FieldErrors {
	return n.evaluate(step, draft).Errors
}

// Sweep validates every step in order. At the first failing step the
// navigator moves there, keeps that step's errors and returns the step
// number; it returns 0 when the whole draft is valid.
func (n *Navigator) Sweep(draft models.FormDraft) (int, FieldErrors) {
	for _, def := range n.steps {
		out := n.evaluate(def.Index, draft)
		if out.Valid() {
			continue
		}
		n.step = def.Index
		n.errors = out.Errors
		return def.Index, n.Errors()
	}
	return 0, nil
}

// ValidateField runs the required check and the custom rules of one field,
// as a blur handler would. Fields the wizard does not know are valid.
func (n *Navigator) ValidateField(field string, draft models.FormDraft) validator.Result {
	for _, def := range n.steps {
		errs := FieldErrors{}
		checkField(def, field, draft, errs, nil)
		if msg, bad := errs[field]; bad {
			return validator.Result{Valid: false, Message: msg}
		}
	}
	return validator.Result{Valid: true}
}

func (n *Navigator) evaluate(step int, draft models.FormDraft) StepOutcome {
	out := StepOutcome{Step: step, Errors: FieldErrors{}}
	if step < 1 || step > n.Total() {
		return out
	}
	def := n.steps[step-1]
	derived := map[string]string{}

	for _, field := range stepFields(def) {
		checkField(def, field, draft, out.Errors, derived)
	}
	if len(derived) > 0 {
		out.Derived = derived
	}
	return out
}

// stepFields lists required fields first, then rule-only fields, each once.
func stepFields(def StepDefinition) []string {
	seen := make(map[string]bool, len(def.RequiredFields)+len(def.Rules))
	fields := make([]string, 0, len(def.RequiredFields)+len(def.Rules))
	for _, f := range def.RequiredFields {
		if !seen[f] {
			seen[f] = true
			fields = append(fields, f)
		}
	}
	for _, r := range def.Rules {
		if !seen[r.Field] {
			seen[r.Field] = true
			fields = append(fields, r.Field)
		}
	}
	return fields
}

func checkField(def StepDefinition, field string, draft models.FormDraft, errs FieldErrors, derived map[string]string) {
	if _, seen := errs[field]; seen {
		return
	}
	value := draft.String(field)

	for _, req := range def.RequiredFields {
		if req != field {
			continue
		}
		if res := validator.Required(value); !res.Valid {
			errs[field] = res.Message
			return
		}
	}

	if !draft.Has(field) {
		return
	}
	for _, rule := range def.Rules {
		if rule.Field != field {
			continue
		}
		res, values := rule.Check(value, draft)
		if !res.Valid {
			errs[field] = res.Message
			return
		}
		for k, v := range values {
			if derived != nil {
				derived[k] = v
			}
		}
	}
}
