package signer

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"

	"github.com/whookdev/composer/internal/auth"
	"github.com/whookdev/composer/internal/models"
)

const (
	WsseHeader = "X-WSSE"

	// WsseTimeFormat is the ISO-8601 UTC layout of the Created field.
	WsseTimeFormat = "2006-01-02T15:04:05Z"
)

// WsseSigner adds a WSSE UsernameToken header. Each call draws a new nonce
// and timestamp, so two signatures of the same request never match.
type WsseSigner struct {
	key    string
	secret string
	clock  Clock
	nonces NonceSource
}

func NewWsseSigner(params auth.Params, options ...Option) *WsseSigner {
	s := &WsseSigner{
		key:    params["key"],
		secret: params["secret"],
		clock:  SystemClock{},
		nonces: RandomNonce{Size: 16},
	}

	for _, option := range options {
		switch option.Ident() {
		case identClock{}:
			s.clock = option.Value().(Clock)
		case identNonceSource{}:
			s.nonces = option.Value().(NonceSource)
		}
	}

	return s
}

func (s *WsseSigner) Sign(opts *models.RequestOptions) (*models.RequestOptions, error) {
	if s.key == "" {
		return nil, fmt.Errorf("wsse key: %w", ErrMissingCredentials)
	}
	if s.secret == "" {
		return nil, fmt.Errorf("wsse secret: %w", ErrMissingCredentials)
	}

	nonce, err := s.nonces.Nonce()
	if err != nil {
		return nil, fmt.Errorf("generating wsse nonce: %w", err)
	}
	created := s.clock.Now().UTC().Format(WsseTimeFormat)

	signed := opts.Clone()
	signed.Headers = append(signed.Headers, models.Header{
		Name:  WsseHeader,
		Value: WsseHeaderValue(s.key, nonce, created, s.secret),
	})
	return signed, nil
}

// WsseDigest is base64(sha1(nonce + created + secret)).
func WsseDigest(nonce, created, secret string) string {
	h := sha1.New()
	h.Write([]byte(nonce))
	h.Write([]byte(created))
	h.Write([]byte(secret))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// WsseHeaderValue formats the UsernameToken carried in the X-WSSE header.
func WsseHeaderValue(key, nonce, created, secret string) string {
	return fmt.Sprintf(`UsernameToken Username="%s", PasswordDigest="%s", Nonce="%s", Created="%s"`,
		key, WsseDigest(nonce, created, secret), nonce, created)
}
