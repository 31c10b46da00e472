// Package errkind classifies dispatcher/httpapi errors into the fixed set
// of kinds the HTTP layer maps to status codes, as opposed to the
// concrete Go error values themselves — handlers switch on kind, not on
// sentinel identity, so a new internal error type never has to touch the
// transport layer.
package errkind

import (
	"errors"
	"net/http"
)

// Kind is one of the error categories the transport layer treats
// differently.
type Kind int

const (
	// Unknown covers any error not classified below; the transport layer
	// treats it as an internal error (500).
	Unknown Kind = iota
	// UnknownSession means the session id named in the request does not
	// exist. Surfaced as 404, never retried server-side.
	UnknownSession
	// UnknownLanguage means the language named in the request is not
	// supported by the session. Surfaced as 404.
	UnknownLanguage
	// MalformedRequest means the request body or parameters failed to
	// parse or validate. Surfaced as 400; no state mutation occurs.
	MalformedRequest
)

// Classifier maps a domain error to its Kind. Any error not recognized by
// the classifier's wrapped sentinels is Unknown.
type Classifier struct {
	sessionNotFound  error
	languageNotFound error
}

// New builds a Classifier that recognizes sessionNotFound and
// languageNotFound as the corresponding Kinds via errors.Is.
func New(sessionNotFound, languageNotFound error) Classifier {
	return Classifier{sessionNotFound: sessionNotFound, languageNotFound: languageNotFound}
}

// Classify returns the Kind of err, or Unknown if it matches none of the
// classifier's known sentinels.
func (c Classifier) Classify(err error) Kind {
	switch {
	case err == nil:
		return Unknown
	case c.sessionNotFound != nil && errors.Is(err, c.sessionNotFound):
		return UnknownSession
	case c.languageNotFound != nil && errors.Is(err, c.languageNotFound):
		return UnknownLanguage
	default:
		return Unknown
	}
}

// StatusCode is the HTTP status errkind's Kind maps to. httpapi calls this
// directly rather than re-implementing the kind-to-status table.
func (k Kind) StatusCode() int {
	switch k {
	case UnknownSession, UnknownLanguage:
		return http.StatusNotFound
	case MalformedRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
