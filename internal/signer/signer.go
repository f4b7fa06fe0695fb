// Package signer adds authentication material to wire-ready requests.
//
// Every supported auth.Type has exactly one Signer implementation, and
// Create is the only place that maps a type to it. Callers hold a Signer and
// never branch on the type themselves.
package signer

import (
	"errors"
	"fmt"

	"github.com/whookdev/composer/internal/auth"
	"github.com/whookdev/composer/internal/models"
)

// Signer transforms a wire-ready request by adding authentication material.
// Implementations return a new RequestOptions and leave the input untouched.
type Signer interface {
	Sign(opts *models.RequestOptions) (*models.RequestOptions, error)
}

// ErrMissingCredentials is returned by Sign when a required credential is
// absent. Nothing is sent when signing fails.
var ErrMissingCredentials = errors.New("missing credentials")

// UnknownAuthTypeError is returned by Create for an unregistered type.
type UnknownAuthTypeError struct {
	AuthType auth.Type
}

func (e *UnknownAuthTypeError) Error() string {
	return fmt.Sprintf("Unknown authentication type \"%s\"", e.AuthType)
}

// Create returns the Signer for t, configured with params. Options are
// applied to signers that accept them and ignored otherwise.
func Create(t auth.Type, params auth.Params, options ...Option) (Signer, error) {
	switch t {
	case auth.Wsse:
		return NewWsseSigner(params, options...), nil
	case auth.None:
		return NoneSigner{}, nil
	default:
		return nil, &UnknownAuthTypeError{AuthType: t}
	}
}

// NoneSigner signs nothing.
type NoneSigner struct{}

func (NoneSigner) Sign(opts *models.RequestOptions) (*models.RequestOptions, error) {
	return opts, nil
}
