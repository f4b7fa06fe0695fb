package signer

import (
	"github.com/lestrrat-go/option"
)

type Option = option.Interface

type identClock struct{}

func (identClock) String() string { return "WithClock" }

type identNonceSource struct{}

func (identNonceSource) String() string { return "WithNonceSource" }

// WithClock sets the clock used for the created timestamp.
func WithClock(clock Clock) Option {
	return option.New(identClock{}, clock)
}

// WithNonceSource sets where nonces come from.
func WithNonceSource(src NonceSource) Option {
	return option.New(identNonceSource{}, src)
}
