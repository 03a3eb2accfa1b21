// Package sderr defines the error kinds shared by issuance, presentation
// building and verification.
package sderr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindPathNotFound
	KindPathTypeMismatch
	KindPathMalformed
	KindCannotConcealIdentifier
	KindIssuance
	KindCrypto
	KindReplay
	KindAudience
	KindExpired
	KindProof
	KindUnresolvedIssuer
	KindRevoked
)

var kindNames = map[Kind]string{
	KindUnknown:                 "Unknown",
	KindPathNotFound:            "PathError.NotFound",
	KindPathTypeMismatch:        "PathError.TypeMismatch",
	KindPathMalformed:           "PathError.Malformed",
	KindCannotConcealIdentifier: "PolicyError.CannotConcealIdentifier",
	KindIssuance:                "IssuanceError",
	KindCrypto:                  "CryptoError",
	KindReplay:                  "ReplayError",
	KindAudience:                "AudienceError",
	KindExpired:                 "ExpiredError",
	KindProof:                   "ProofError",
	KindUnresolvedIssuer:        "UnresolvedIssuerError",
	KindRevoked:                 "RevokedError",
}

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsPath reports whether the kind is one of the PathError variants.
func (k Kind) IsPath() bool {
	return k == KindPathNotFound || k == KindPathTypeMismatch || k == KindPathMalformed
}

// Retryable reports whether the failure points at infrastructure rather
// than at the presented data.
func (k Kind) Retryable() bool {
	return k == KindCrypto || k == KindUnresolvedIssuer
}

// Error is a classified failure.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

// Sentinels usable with errors.Is.
var (
	ErrPathNotFound            = &Error{Kind: KindPathNotFound}
	ErrPathTypeMismatch        = &Error{Kind: KindPathTypeMismatch}
	ErrPathMalformed           = &Error{Kind: KindPathMalformed}
	ErrCannotConcealIdentifier = &Error{Kind: KindCannotConcealIdentifier}
	ErrIssuance                = &Error{Kind: KindIssuance}
	ErrCrypto                  = &Error{Kind: KindCrypto}
	ErrReplay                  = &Error{Kind: KindReplay}
	ErrAudience                = &Error{Kind: KindAudience}
	ErrExpired                 = &Error{Kind: KindExpired}
	ErrProof                   = &Error{Kind: KindProof}
	ErrUnresolvedIssuer        = &Error{Kind: KindUnresolvedIssuer}
	ErrRevoked                 = &Error{Kind: KindRevoked}
)

// New creates a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf creates a classified error with a formatted cause.
func Newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// PathErr creates a PathError variant for the given textual path.
func PathErr(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += fmt.Sprintf(" at %q", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so the sentinels above work
// with errors.Is regardless of Op, Path or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
