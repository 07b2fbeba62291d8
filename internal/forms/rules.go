// Package forms implements per-field rule validation and submit gating for
// operator-facing forms. Rules are pure predicates evaluated in declaration
// order with per-field short-circuit; format rules pass on empty input so
// that only Required makes a field mandatory.
package forms

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Rule pairs a predicate with the message shown when it fails.
type Rule struct {
	Check   func(value string) bool
	Message string
}

// validate backs the format primitives. The validator instance is stateless
// and shared; Var calls are safe for concurrent use.
var validate = validator.New()

func isBlank(value string) bool {
	return strings.TrimSpace(value) == ""
}

// Required fails on empty or whitespace-only input. It is the only rule an
// absent value does not pass.
func Required(message string) Rule {
	return Rule{
		Check:   func(value string) bool { return !isBlank(value) },
		Message: message,
	}
}

// Email accepts a syntactically valid email address.
func Email(message string) Rule {
	return formatRule(message, func(value string) bool {
		return validate.Var(value, "email") == nil
	})
}

// MinLength requires at least n characters.
func MinLength(n int, message string) Rule {
	return formatRule(message, func(value string) bool {
		return len([]rune(value)) >= n
	})
}

// MaxLength allows at most n characters.
func MaxLength(n int, message string) Rule {
	return formatRule(message, func(value string) bool {
		return len([]rune(value)) <= n
	})
}

// Range requires a numeric value between min and max inclusive.
func Range(min, max float64, message string) Rule {
	return formatRule(message, func(value string) bool {
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		return err == nil && f >= min && f <= max
	})
}

// Pattern requires the value to match re.
func Pattern(re *regexp.Regexp, message string) Rule {
	return formatRule(message, re.MatchString)
}

// Phone accepts an E.164 phone number.
func Phone(message string) Rule {
	return formatRule(message, func(value string) bool {
		return validate.Var(value, "e164") == nil
	})
}

// URL accepts an absolute http(s) URL.
func URL(message string) Rule {
	return formatRule(message, func(value string) bool {
		return validate.Var(value, "http_url") == nil
	})
}

// formatRule wraps a predicate so empty input always passes; format checks
// are opt-in only when a value is present.
func formatRule(message string, check func(string) bool) Rule {
	return Rule{
		Check: func(value string) bool {
			if isBlank(value) {
				return true
			}
			return check(value)
		},
		Message: message,
	}
}
