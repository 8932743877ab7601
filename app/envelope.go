package app

import (
	"encoding/json"

	"datawhisperer/internal/errors"
)

// Envelope is the uniform response shape. Success envelopes carry the
// payload's fields at the top level plus ok=true; failures carry
// ok=false and a structured error with type, message, hint, and
// context.
type Envelope map[string]any

// ErrorBody is the failure half of the envelope.
type ErrorBody struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// Respond folds an operation outcome into an envelope. Exactly one of
// payload and err is consulted: a non-nil err always wins.
func Respond(payload any, err error) Envelope {
	if err != nil {
		return Fail(err)
	}
	return OK(payload)
}

// OK wraps a payload as a success envelope. The payload's JSON fields
// are lifted to the top level next to ok.
func OK(payload any) Envelope {
	env := Envelope{"ok": true}
	if payload == nil {
		return env
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Fail(errors.InternalError("encoding response payload: " + err.Error()))
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		// Non-object payloads (lists, scalars) ride under a single key.
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return Fail(errors.InternalError("decoding response payload: " + err.Error()))
		}
		env["result"] = v
		return env
	}
	for k, v := range fields {
		if k == "ok" {
			continue
		}
		env[k] = v
	}
	return env
}

// Fail wraps an error as a failure envelope. Unclassified errors map
// to INTERNAL_ERROR rather than leaking internals untyped.
func Fail(err error) Envelope {
	body := ErrorBody{
		Type:    errors.CodeInternalError,
		Message: err.Error(),
	}
	if appErr, ok := errors.AsAppError(err); ok {
		body.Type = appErr.Code
		body.Message = appErr.Message
		body.Hint = appErr.Hint
		if len(appErr.Context) > 0 {
			body.Context = appErr.Context
		}
	}
	return Envelope{"ok": false, "error": body}
}
