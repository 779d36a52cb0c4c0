package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/mailchimp-gateway/utils"
)

func violationsFor(t *testing.T, err error, field string) []utils.FieldViolation {
	t.Helper()
	require.Error(t, err)
	require.True(t, utils.IsValidationError(err))

	var out []utils.FieldViolation
	for _, v := range utils.GetViolations(err) {
		if v.Field == field {
			out = append(out, v)
		}
	}
	return out
}

func TestParseSubscriptionRequest_Valid(t *testing.T) {
	t.Run("only required fields", func(t *testing.T) {
		req, err := ParseSubscriptionRequest([]byte(`{"email":"valid@example.com"}`))
		require.NoError(t, err)

		assert.Equal(t, "valid@example.com", req.Email)
		assert.Nil(t, req.FirstName)
		assert.Nil(t, req.LastName)
		assert.Nil(t, req.Tags)
		assert.Nil(t, req.Language)
	})

	t.Run("all fields", func(t *testing.T) {
		req, err := ParseSubscriptionRequest([]byte(`{
			"email": "valid@example.com",
			"firstName": "John",
			"lastName": "Doe",
			"tags": ["customer", "newsletter"],
			"language": "en"
		}`))
		require.NoError(t, err)

		assert.Equal(t, "John", StringValue(req.FirstName))
		assert.Equal(t, "Doe", StringValue(req.LastName))
		assert.Equal(t, []string{"customer", "newsletter"}, req.Tags)
		assert.Equal(t, "en", StringValue(req.Language))
	})

	t.Run("empty tags array", func(t *testing.T) {
		req, err := ParseSubscriptionRequest([]byte(`{"email":"valid@example.com","tags":[]}`))
		require.NoError(t, err)
		assert.NotNil(t, req.Tags)
		assert.Empty(t, req.Tags)
	})

	t.Run("null optional fields are treated as absent", func(t *testing.T) {
		req, err := ParseSubscriptionRequest([]byte(`{"email":"valid@example.com","firstName":null,"tags":null}`))
		require.NoError(t, err)
		assert.Nil(t, req.FirstName)
		assert.Nil(t, req.Tags)
	})
}

func TestParseSubscriptionRequest_Email(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty email", `{"email":""}`},
		{"invalid email", `{"email":"not-an-email"}`},
		{"missing email", `{"firstName":"NoEmail"}`},
		{"email is not a string", `{"email":42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSubscriptionRequest([]byte(tt.payload))

			violations := violationsFor(t, err, FieldEmail)
			require.Len(t, violations, 1)
			assert.Equal(t, utils.ConstraintIsEmail, violations[0].Constraint)
			assert.Contains(t, violations[0].Message, "email must be an email")
		})
	}
}

func TestParseSubscriptionRequest_OptionalFields(t *testing.T) {
	t.Run("firstName is not a string", func(t *testing.T) {
		_, err := ParseSubscriptionRequest([]byte(`{"email":"valid@example.com","firstName":123}`))

		violations := violationsFor(t, err, FieldFirstName)
		require.Len(t, violations, 1)
		assert.Equal(t, utils.ConstraintIsString, violations[0].Constraint)
		assert.Regexp(t, "(?i)must be a string", violations[0].Message)
	})

	t.Run("language is not a string", func(t *testing.T) {
		_, err := ParseSubscriptionRequest([]byte(`{"email":"valid@example.com","language":123}`))

		violations := violationsFor(t, err, FieldLanguage)
		require.Len(t, violations, 1)
		assert.Equal(t, "language must be a string", violations[0].Message)
	})

	t.Run("tags contains non-string values", func(t *testing.T) {
		_, err := ParseSubscriptionRequest([]byte(`{"email":"valid@example.com","tags":["valid",123]}`))

		violations := violationsFor(t, err, FieldTags)
		require.Len(t, violations, 1)
		assert.Equal(t, utils.ConstraintIsString, violations[0].Constraint)
		assert.Equal(t, "each value in tags must be a string", violations[0].Message)
	})

	t.Run("tags is not an array", func(t *testing.T) {
		_, err := ParseSubscriptionRequest([]byte(`{"email":"valid@example.com","tags":"newsletter"}`))

		violations := violationsFor(t, err, FieldTags)
		require.Len(t, violations, 1)
		assert.Equal(t, utils.ConstraintIsArray, violations[0].Constraint)
	})
}

func TestParseSubscriptionRequest_CollectsEveryViolation(t *testing.T) {
	_, err := ParseSubscriptionRequest([]byte(`{
		"email": "not-an-email",
		"firstName": 123,
		"lastName": true,
		"tags": [123],
		"role": "admin",
		"age": 30
	}`))
	require.Error(t, err)

	violations := utils.GetViolations(err)
	fields := make([]string, 0, len(violations))
	for _, v := range violations {
		fields = append(fields, v.Field)
	}

	assert.Equal(t, []string{"email", "firstName", "lastName", "tags", "age", "role"}, fields)
	assert.Equal(t, utils.ConstraintWhitelist, violations[4].Constraint)
	assert.Equal(t, "property age should not exist", violations[4].Message)
}

func TestParseSubscriptionRequest_UnknownField(t *testing.T) {
	_, err := ParseSubscriptionRequest([]byte(`{"email":"valid@example.com","extra":"x"}`))

	violations := violationsFor(t, err, "extra")
	require.Len(t, violations, 1)
	assert.Equal(t, utils.ConstraintWhitelist, violations[0].Constraint)
}

func TestParseSubscriptionRequest_Body(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"malformed json", `{"email":`},
		{"array body", `[{"email":"valid@example.com"}]`},
		{"scalar body", `"valid@example.com"`},
		{"empty body", ``},
		{"trailing document", `{"email":"valid@example.com"}{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseSubscriptionRequest([]byte(tt.payload))
			assert.Nil(t, req)

			violations := violationsFor(t, err, "body")
			require.Len(t, violations, 1)
			assert.Equal(t, utils.ConstraintIsObject, violations[0].Constraint)
		})
	}
}
