package forms

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRules_EmptyValuePassesAllButRequired(t *testing.T) {
	rules := map[string]Rule{
		"email":     Email("bad email"),
		"minlength": MinLength(3, "too short"),
		"maxlength": MaxLength(3, "too long"),
		"range":     Range(1, 10, "out of range"),
		"pattern":   Pattern(regexp.MustCompile(`^\d+$`), "digits only"),
		"phone":     Phone("bad phone"),
		"url":       URL("bad url"),
	}
	for name, rule := range rules {
		assert.True(t, rule.Check(""), "%s must pass empty input", name)
		assert.True(t, rule.Check("   "), "%s must pass blank input", name)
	}

	assert.False(t, Required("required").Check(""))
	assert.False(t, Required("required").Check("   "))
	assert.True(t, Required("required").Check("x"))
}

func TestRules_FormatChecks(t *testing.T) {
	cases := []struct {
		name  string
		rule  Rule
		value string
		ok    bool
	}{
		{"email ok", Email("m"), "amy@dinehall.example", true},
		{"email bad", Email("m"), "not-an-email", false},
		{"minlength ok", MinLength(3, "m"), "abc", true},
		{"minlength bad", MinLength(3, "m"), "ab", false},
		{"maxlength ok", MaxLength(3, "m"), "abc", true},
		{"maxlength bad", MaxLength(3, "m"), "abcd", false},
		{"range ok", Range(1, 10, "m"), "5.5", true},
		{"range low", Range(1, 10, "m"), "0.5", false},
		{"range not a number", Range(1, 10, "m"), "five", false},
		{"pattern ok", Pattern(regexp.MustCompile(`^\d+$`), "m"), "42", true},
		{"pattern bad", Pattern(regexp.MustCompile(`^\d+$`), "m"), "4x", false},
		{"phone ok", Phone("m"), "+15551234567", true},
		{"phone bad", Phone("m"), "555-1234", false},
		{"url ok", URL("m"), "https://dinehall.example/hooks", true},
		{"url bad", URL("m"), "dinehall dot example", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.ok, tc.rule.Check(tc.value))
		})
	}
}

func TestForm_SubmitGatesOnValidation(t *testing.T) {
	form := New(
		map[string]string{"name": "", "email": ""},
		map[string][]Rule{
			"name":  {Required("name required")},
			"email": {Required("email required"), Email("bad email")},
		},
	)

	ran := false
	ok, err := form.Submit(context.Background(), func(context.Context, map[string]string) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, ran)

	// First submit touches every declared field, interacted with or not.
	touched := form.Touched()
	assert.True(t, touched["name"])
	assert.True(t, touched["email"])
	assert.Equal(t, "name required", form.Errors()["name"])
	assert.Equal(t, "email required", form.Errors()["email"])

	form.SetValue("name", "Amy")
	form.SetValue("email", "amy@dinehall.example")
	ok, err = form.Submit(context.Background(), func(_ context.Context, values map[string]string) error {
		ran = true
		assert.Equal(t, "Amy", values["name"])
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, ran)
}

func TestForm_SubmitTouchesRulelessFields(t *testing.T) {
	form := New(
		map[string]string{"name": "Amy", "note": "extra napkins"},
		map[string][]Rule{
			"name": {Required("name required")},
		},
	)

	ok, err := form.Submit(context.Background(), func(context.Context, map[string]string) error {
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ok)

	touched := form.Touched()
	assert.True(t, touched["name"])
	assert.True(t, touched["note"], "fields without rules must still be touched after submit")
	assert.Empty(t, form.Errors())
}

func TestForm_FirstFailingRuleShortCircuits(t *testing.T) {
	form := New(nil, map[string][]Rule{
		"email": {Required("email required"), Email("bad email")},
	})
	form.MarkTouched("email")
	assert.Equal(t, "email required", form.Errors()["email"])

	form.SetValue("email", "nope")
	assert.Equal(t, "bad email", form.Errors()["email"])

	form.SetValue("email", "amy@dinehall.example")
	assert.Empty(t, form.Errors())
}

func TestForm_ErrorsOnlyForTouchedFields(t *testing.T) {
	form := New(nil, map[string][]Rule{
		"name": {Required("name required")},
	})
	assert.Empty(t, form.Errors(), "untouched invalid field must not report")

	form.MarkTouched("name")
	assert.Equal(t, "name required", form.Errors()["name"])
}

func TestForm_SubmitPropagatesHandlerError(t *testing.T) {
	form := New(map[string]string{"name": "Amy"}, map[string][]Rule{
		"name": {Required("name required")},
	})
	boom := errors.New("backend down")
	ok, err := form.Submit(context.Background(), func(context.Context, map[string]string) error {
		return boom
	})
	assert.True(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestForm_ReentrantSubmitRejected(t *testing.T) {
	form := New(map[string]string{"name": "Amy"}, map[string][]Rule{
		"name": {Required("name required")},
	})

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		form.Submit(context.Background(), func(context.Context, map[string]string) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	assert.True(t, form.Submitting())
	ok, err := form.Submit(context.Background(), func(context.Context, map[string]string) error { return nil })
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrSubmitting)

	close(release)
	<-done
	assert.False(t, form.Submitting())
}

func TestForm_Reset(t *testing.T) {
	form := New(map[string]string{"name": "Amy"}, map[string][]Rule{
		"name": {Required("name required")},
	})
	form.SetValue("name", "")
	require.NotEmpty(t, form.Errors())

	form.Reset()
	assert.Equal(t, "Amy", form.Values()["name"])
	assert.Empty(t, form.Errors())
	assert.Empty(t, form.Touched())
}
