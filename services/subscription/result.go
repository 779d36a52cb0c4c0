package subscription

import (
	"encoding/json"
)

// UnknownErrorMessage is reported when the provider call raised something
// that is not an error value.
const UnknownErrorMessage = "Unknown error occurred"

// Outcome labels a classified result
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeTransportFailure Outcome = "transport_failure"
	OutcomeGenericFailure   Outcome = "generic_failure"
	OutcomeUnknownFailure   Outcome = "unknown_failure"
)

// Result is the outcome of one subscription attempt. It is exactly one of
// Success, TransportFailure, GenericFailure or UnknownFailure.
type Result interface {
	Outcome() Outcome
	Envelope() Envelope
	isResult()
}

// Success carries the provider response body
type Success struct {
	Data json.RawMessage
}

// TransportFailure is a failed HTTP exchange. StatusCode is 0 and Response
// is nil when the provider never answered.
type TransportFailure struct {
	Message    string
	Response   json.RawMessage
	StatusCode int
}

// GenericFailure is any other error raised by the provider call
type GenericFailure struct {
	Message string
}

// UnknownFailure is a raised value that was not an error
type UnknownFailure struct{}

func (Success) isResult()          {}
func (TransportFailure) isResult() {}
func (GenericFailure) isResult()   {}
func (UnknownFailure) isResult()   {}

func (Success) Outcome() Outcome          { return OutcomeSuccess }
func (TransportFailure) Outcome() Outcome { return OutcomeTransportFailure }
func (GenericFailure) Outcome() Outcome   { return OutcomeGenericFailure }
func (UnknownFailure) Outcome() Outcome   { return OutcomeUnknownFailure }

// Envelope is the JSON shape returned to API callers
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody is the failure detail. Response and StatusCode are only ever
// set for transport failures.
type ErrorBody struct {
	Message    string          `json:"message"`
	Response   json.RawMessage `json:"response,omitempty"`
	StatusCode *int            `json:"statusCode,omitempty"`
}

// Envelope renders {"success":true,"data":...}
func (r Success) Envelope() Envelope {
	data := r.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return Envelope{Success: true, Data: data}
}

// Envelope renders the failure with response and statusCode when present
func (r TransportFailure) Envelope() Envelope {
	body := &ErrorBody{Message: r.Message}
	if len(r.Response) > 0 {
		body.Response = r.Response
	}
	if r.StatusCode != 0 {
		code := r.StatusCode
		body.StatusCode = &code
	}
	return Envelope{Success: false, Error: body}
}

// Envelope renders the failure with its message only
func (r GenericFailure) Envelope() Envelope {
	return Envelope{Success: false, Error: &ErrorBody{Message: r.Message}}
}

// Envelope renders the fixed unknown-error message
func (UnknownFailure) Envelope() Envelope {
	return Envelope{Success: false, Error: &ErrorBody{Message: UnknownErrorMessage}}
}
