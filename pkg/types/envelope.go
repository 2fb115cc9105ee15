// Package types holds the JSON shapes every HTTP handler answers with.
package types

// Envelope is the {"data": ...} wrapper around successful payloads.
type Envelope[T any] struct {
	Data T `json:"data"`
}

type SuccessEnvelope = Envelope[any]

// Problem describes a failed request. Details is only populated for
// client errors.
type Problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error Problem `json:"error"`
}

// ProfileResult is the flat {success}|{error} shape of the profile forms.
type ProfileResult struct {
	Success bool   `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}
