package lookup

import (
	"errors"
	"fmt"
)

// Kind classifies why a lookup failed
type Kind string

const (
	KindValidation Kind = "validation"
	KindProvider   Kind = "provider"
	KindTransport  Kind = "transport"
	KindParse      Kind = "parse"
	KindUnknown    Kind = "unknown"
)

// User-facing failure messages
const (
	MsgEmptyDomain = "Please enter a domain name"
	MsgNotOK       = "Network response was not ok"
	MsgTransport   = "Failed to fetch WHOIS data: network error"
	MsgParse       = "Failed to parse WHOIS response"
	MsgUnexpected  = "An unexpected error occurred"
)

// ErrEmptyDomain is returned for empty or whitespace-only input. It is
// detected locally and never reaches a provider.
var ErrEmptyDomain = errors.New("domain name is empty")

// ProviderError is a non-success answer from the WHOIS provider. Message is
// already resolved to the most specific text the provider offered.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return MsgNotOK
	}
	return e.Message
}

// TransportError means no response was received from the provider
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError means a response arrived but did not have the expected shape
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Classify maps an error to its kind and the message shown to the user.
// Raw transport and parser errors are never surfaced.
func Classify(err error) (Kind, string) {
	var (
		providerErr  *ProviderError
		transportErr *TransportError
		parseErr     *ParseError
	)

	switch {
	case err == nil:
		return "", ""
	case errors.Is(err, ErrEmptyDomain):
		return KindValidation, MsgEmptyDomain
	case errors.As(err, &providerErr):
		return KindProvider, providerErr.Error()
	case errors.As(err, &transportErr):
		return KindTransport, MsgTransport
	case errors.As(err, &parseErr):
		return KindParse, MsgParse
	default:
		return KindUnknown, MsgUnexpected
	}
}

// FailureFrom converts an error into a Failure view-state
func FailureFrom(err error) Failure {
	kind, msg := Classify(err)
	return Failure{Kind: kind, Message: msg}
}
