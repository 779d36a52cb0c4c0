package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStruct struct {
	Email string `json:"email" validate:"email"`
	Code  string `json:"code" validate:"numeric"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		s := testStruct{Email: "john@example.com", Code: "42"}

		verr := ValidateStruct(&s)
		assert.Nil(t, verr)
	})

	t.Run("empty email fails the email constraint", func(t *testing.T) {
		s := testStruct{Email: "", Code: "42"}

		verr := ValidateStruct(&s)
		require.NotNil(t, verr)

		require.Len(t, verr.Violations, 1)
		assert.Equal(t, FieldViolation{
			Field:      "email",
			Constraint: ConstraintIsEmail,
			Message:    "email must be an email",
		}, verr.Violations[0])
	})

	t.Run("every failed field is reported", func(t *testing.T) {
		s := testStruct{Email: "not-an-email", Code: "abc"}

		verr := ValidateStruct(&s)
		require.NotNil(t, verr)

		require.Len(t, verr.Violations, 2)
		assert.Equal(t, "email", verr.Violations[0].Field)
		assert.Equal(t, "code", verr.Violations[1].Field)
		assert.Equal(t, "numeric", verr.Violations[1].Constraint)
		assert.Equal(t, "code validation failed on 'numeric' tag", verr.Violations[1].Message)
	})
}

func TestValidationError(t *testing.T) {
	verr := NewValidationError()
	assert.False(t, verr.HasViolations())
	assert.Equal(t, "Validation failed", verr.Error())

	verr.Add("email", ConstraintIsEmail, "email must be an email")
	other := NewValidationError()
	other.Add("foo", ConstraintWhitelist, "property foo should not exist")
	verr.Merge(other)
	verr.Merge(nil)

	assert.True(t, verr.HasViolations())
	assert.Equal(t, []string{"email must be an email", "property foo should not exist"}, verr.Messages())
	assert.Equal(t, "Validation failed: email must be an email; property foo should not exist", verr.Error())
}

func TestIsValidationError(t *testing.T) {
	verr := NewValidationError()
	verr.Add("email", ConstraintIsEmail, "email must be an email")

	wrapped := fmt.Errorf("decode payload: %w", verr)

	assert.True(t, IsValidationError(wrapped))
	assert.False(t, IsValidationError(errors.New("plain")))
	assert.Len(t, GetViolations(wrapped), 1)
	assert.Nil(t, GetViolations(errors.New("plain")))
}
