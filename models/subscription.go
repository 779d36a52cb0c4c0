package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/upb/mailchimp-gateway/utils"
)

// SubscriptionRequest is a validated newsletter subscription payload.
// Optional fields are nil when the caller omitted them.
type SubscriptionRequest struct {
	Email     string   `json:"email" validate:"email"`
	FirstName *string  `json:"firstName,omitempty"`
	LastName  *string  `json:"lastName,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Language  *string  `json:"language,omitempty"`
}

// Recognized payload fields, in reporting order
const (
	FieldEmail     = "email"
	FieldFirstName = "firstName"
	FieldLastName  = "lastName"
	FieldTags      = "tags"
	FieldLanguage  = "language"
)

var recognizedFields = map[string]bool{
	FieldEmail:     true,
	FieldFirstName: true,
	FieldLastName:  true,
	FieldTags:      true,
	FieldLanguage:  true,
}

// ParseSubscriptionRequest validates an arbitrary JSON payload and returns the
// normalized request. Unknown fields are rejected. On failure the returned
// error is a *utils.ValidationError enumerating every violation.
func ParseSubscriptionRequest(payload []byte) (*SubscriptionRequest, error) {
	verr := utils.NewValidationError()

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		verr.Add("body", utils.ConstraintIsObject, fmt.Sprintf("body must be a JSON object: %v", err))
		return nil, verr
	}
	if dec.More() {
		verr.Add("body", utils.ConstraintIsObject, "body must contain a single JSON object")
		return nil, verr
	}

	fields, ok := doc.(map[string]interface{})
	if !ok {
		verr.Add("body", utils.ConstraintIsObject, "body must be a JSON object")
		return nil, verr
	}

	req := &SubscriptionRequest{}

	if email, ok := fields[FieldEmail].(string); ok {
		// Grammar check runs while the optional fields are still unset
		req.Email = email
		verr.Merge(utils.ValidateStruct(req))
	} else {
		verr.Add(FieldEmail, utils.ConstraintIsEmail, "email must be an email")
	}

	req.FirstName = optionalString(fields, FieldFirstName, verr)
	req.LastName = optionalString(fields, FieldLastName, verr)
	req.Tags = optionalStringSlice(fields, FieldTags, verr)
	req.Language = optionalString(fields, FieldLanguage, verr)

	unknown := make([]string, 0)
	for name := range fields {
		if !recognizedFields[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		verr.Add(name, utils.ConstraintWhitelist, fmt.Sprintf("property %s should not exist", name))
	}

	if verr.HasViolations() {
		return nil, verr
	}
	return req, nil
}

// optionalString reads a field that may be absent, null or a string
func optionalString(fields map[string]interface{}, name string, verr *utils.ValidationError) *string {
	raw, present := fields[name]
	if !present || raw == nil {
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		verr.Add(name, utils.ConstraintIsString, fmt.Sprintf("%s must be a string", name))
		return nil
	}
	return &s
}

// optionalStringSlice reads a field that may be absent, null or a list of strings
func optionalStringSlice(fields map[string]interface{}, name string, verr *utils.ValidationError) []string {
	raw, present := fields[name]
	if !present || raw == nil {
		return nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		verr.Add(name, utils.ConstraintIsArray, fmt.Sprintf("%s must be an array", name))
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			verr.Add(name, utils.ConstraintIsString, fmt.Sprintf("each value in %s must be a string", name))
			return nil
		}
		out = append(out, s)
	}
	return out
}

// StringValue dereferences an optional string, returning "" for nil
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
