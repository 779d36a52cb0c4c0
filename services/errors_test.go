package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeInternal, "client missing", baseErr)

	assert.Equal(t, ErrorTypeInternal, domainErr.Type)
	assert.Equal(t, "client missing", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name: "error with wrapped error",
			err: &DomainError{
				Type:    ErrorTypeInternal,
				Message: "marshal failed",
				Err:     errors.New("bad value"),
			},
			wantMsg: "internal: marshal failed (bad value)",
		},
		{
			name:    "missing email",
			err:     ErrMissingEmail,
			wantMsg: "contract: Email is required",
		},
		{
			name:    "provider not configured",
			err:     ErrProviderNotConfigured,
			wantMsg: "internal: mailchimp provider not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeInternal, "internal error", baseErr)

	assert.Equal(t, baseErr, errors.Unwrap(domainErr))
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same sentinel",
			err:    ErrMissingEmail,
			target: ErrMissingEmail,
			want:   true,
		},
		{
			name:   "wrapped sentinel",
			err:    fmt.Errorf("subscribe: %w", ErrMissingEmail),
			target: ErrMissingEmail,
			want:   true,
		},
		{
			name:   "same type different message",
			err:    NewDomainError(ErrorTypeInternal, "other", nil),
			target: ErrProviderNotConfigured,
			want:   false,
		},
		{
			name:   "plain error",
			err:    errors.New("Email is required"),
			target: ErrMissingEmail,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestErrorTypeChecks(t *testing.T) {
	assert.True(t, IsContractError(fmt.Errorf("wrap: %w", ErrMissingEmail)))
	assert.True(t, IsInternalError(ErrProviderNotConfigured))

	assert.False(t, IsContractError(ErrProviderNotConfigured))
	assert.False(t, IsInternalError(ErrMissingEmail))
	assert.False(t, IsContractError(errors.New("plain")))

	assert.Equal(t, ErrorTypeContract, GetErrorType(ErrMissingEmail))
	assert.Equal(t, ErrorType(""), GetErrorType(errors.New("plain")))
}
