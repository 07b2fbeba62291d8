package forms

import (
	"context"
	"errors"
	"sync"
)

// ErrSubmitting is returned by Submit while a previous submit is running.
var ErrSubmitting = errors.New("forms: submit already in progress")

// Form tracks the values, touched set and validation errors of one form
// instance. Safe for concurrent use; lifecycle is scoped to whatever owns
// the instance and ends with Reset or disposal.
type Form struct {
	mu         sync.Mutex
	initial    map[string]string
	values     map[string]string
	rules      map[string][]Rule
	fieldOrder []string
	touched    map[string]struct{}
	errors     map[string]string
	submitting bool
}

// New creates a form with the given initial values and per-field rules.
// Fields present only in rules start empty.
func New(initial map[string]string, rules map[string][]Rule) *Form {
	f := &Form{
		initial: make(map[string]string, len(initial)),
		values:  make(map[string]string, len(initial)),
		rules:   make(map[string][]Rule, len(rules)),
		touched: make(map[string]struct{}),
		errors:  make(map[string]string),
	}
	for field, value := range initial {
		f.initial[field] = value
		f.values[field] = value
	}
	for field, fieldRules := range rules {
		f.rules[field] = fieldRules
		f.fieldOrder = append(f.fieldOrder, field)
		if _, ok := f.values[field]; !ok {
			f.values[field] = ""
			f.initial[field] = ""
		}
	}
	return f
}

// Values returns a copy of the current field values.
func (f *Form) Values() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyMap(f.values)
}

// Errors returns the first failing message per field, for touched invalid
// fields only.
func (f *Form) Errors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyMap(f.errors)
}

// Touched returns the set of fields the user has interacted with.
func (f *Form) Touched() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	touched := make(map[string]bool, len(f.touched))
	for field := range f.touched {
		touched[field] = true
	}
	return touched
}

// Submitting reports whether a Submit handler is currently running.
func (f *Form) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// SetValue updates a field, marks it touched and revalidates it.
func (f *Form) SetValue(field, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[field] = value
	f.touched[field] = struct{}{}
	f.validateFieldLocked(field)
}

// MarkTouched marks a field touched and validates its current value.
func (f *Form) MarkTouched(field string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[field] = struct{}{}
	f.validateFieldLocked(field)
}

// Submit marks every field touched, validates everything and runs onValid
// only when no field has an error. The returned bool reports whether the
// handler ran. Submitting() is true strictly while onValid executes; a
// concurrent Submit returns (false, ErrSubmitting).
func (f *Form) Submit(ctx context.Context, onValid func(ctx context.Context, values map[string]string) error) (bool, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return false, ErrSubmitting
	}
	for _, field := range f.fieldOrder {
		f.touched[field] = struct{}{}
		f.validateFieldLocked(field)
	}
	// Fields without rules still count as touched after a submit.
	for field := range f.values {
		f.touched[field] = struct{}{}
	}
	if len(f.errors) > 0 {
		f.mu.Unlock()
		return false, nil
	}
	f.submitting = true
	values := copyMap(f.values)
	f.mu.Unlock()

	err := onValid(ctx, values)

	f.mu.Lock()
	f.submitting = false
	f.mu.Unlock()
	return true, err
}

// Reset restores initial values and clears touched, errors and submitting.
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = copyMap(f.initial)
	f.touched = make(map[string]struct{})
	f.errors = make(map[string]string)
	f.submitting = false
}

// validateFieldLocked evaluates the field's rules in declaration order and
// records the first failure. Untouched fields never carry an error.
func (f *Form) validateFieldLocked(field string) {
	delete(f.errors, field)
	if _, touched := f.touched[field]; !touched {
		return
	}
	value := f.values[field]
	for _, rule := range f.rules[field] {
		if !rule.Check(value) {
			f.errors[field] = rule.Message
			return
		}
	}
}

func copyMap(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
