package signer_test

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/whookdev/composer/internal/auth"
	"github.com/whookdev/composer/internal/models"
	"github.com/whookdev/composer/internal/signer"
)

func testOptions() *models.RequestOptions {
	return &models.RequestOptions{
		URL:     "https://request.url",
		Method:  "GET",
		Headers: []models.Header{{Name: "content-type", Value: "application/json"}},
	}
}

func TestCreate(t *testing.T) {
	t.Run("wsse", func(t *testing.T) {
		s, err := signer.Create(auth.Wsse, auth.Params{"key": "", "secret": ""})
		require.NoError(t, err)
		require.IsType(t, &signer.WsseSigner{}, s)
	})

	t.Run("none", func(t *testing.T) {
		s, err := signer.Create(auth.None, nil)
		require.NoError(t, err)
		require.IsType(t, signer.NoneSigner{}, s)
	})

	t.Run("unknown", func(t *testing.T) {
		s, err := signer.Create("anything-else", nil)
		require.Nil(t, s)
		require.EqualError(t, err, `Unknown authentication type "anything-else"`)

		var unknown *signer.UnknownAuthTypeError
		require.True(t, errors.As(err, &unknown))
		require.Equal(t, auth.Type("anything-else"), unknown.AuthType)
	})

	t.Run("unknown type is rendered verbatim", func(t *testing.T) {
		_, err := signer.Create(`say "hi" é`, nil)
		require.EqualError(t, err, `Unknown authentication type "say "hi" é"`)
	})
}

func TestNoneSigner(t *testing.T) {
	opts := testOptions()
	signed, err := signer.NoneSigner{}.Sign(opts)
	require.NoError(t, err)
	require.Equal(t, testOptions(), signed)
}

func TestWsseSigner(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("adds exactly one X-WSSE header", func(t *testing.T) {
		opts := testOptions()
		s := signer.NewWsseSigner(auth.Params{"key": "k", "secret": "s"})

		signed, err := s.Sign(opts)
		require.NoError(t, err)
		require.Len(t, signed.Headers, len(opts.Headers)+1)
		require.Equal(t, signer.WsseHeader, signed.Headers[len(signed.Headers)-1].Name)

		// input is left as it was
		require.Equal(t, testOptions(), opts)

		pattern := regexp.MustCompile(`^UsernameToken Username="k", PasswordDigest="[A-Za-z0-9+/=]+", Nonce="[0-9a-f]{32}", Created="\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z"$`)
		require.Regexp(t, pattern, signed.Headers[1].Value)
	})

	t.Run("digest is reproducible for fixed nonce and created", func(t *testing.T) {
		s := signer.NewWsseSigner(auth.Params{"key": "k", "secret": "s"},
			signer.WithClock(signer.FixedClock(created)),
			signer.WithNonceSource(signer.FixedNonce("abc123")),
		)

		signed, err := s.Sign(testOptions())
		require.NoError(t, err)
		require.Equal(t,
			`UsernameToken Username="k", PasswordDigest="33bTLBCghBX3aBTs1dxexbSZ2WE=", Nonce="abc123", Created="2024-01-02T03:04:05Z"`,
			signed.Headers[1].Value,
		)
		require.Equal(t, "33bTLBCghBX3aBTs1dxexbSZ2WE=", signer.WsseDigest("abc123", "2024-01-02T03:04:05Z", "s"))
	})

	t.Run("created is rendered in UTC", func(t *testing.T) {
		local := created.In(time.FixedZone("CET", 3600))
		s := signer.NewWsseSigner(auth.Params{"key": "k", "secret": "s"},
			signer.WithClock(signer.FixedClock(local)),
			signer.WithNonceSource(signer.FixedNonce("abc123")),
		)

		signed, err := s.Sign(testOptions())
		require.NoError(t, err)
		require.Contains(t, signed.Headers[1].Value, `Created="2024-01-02T03:04:05Z"`)
	})

	t.Run("nonces differ between calls", func(t *testing.T) {
		s := signer.NewWsseSigner(auth.Params{"key": "k", "secret": "s"})
		nonce := regexp.MustCompile(`Nonce="([^"]+)"`)

		first, err := s.Sign(testOptions())
		require.NoError(t, err)
		second, err := s.Sign(testOptions())
		require.NoError(t, err)

		a := nonce.FindStringSubmatch(first.Headers[1].Value)
		b := nonce.FindStringSubmatch(second.Headers[1].Value)
		require.Len(t, a, 2)
		require.Len(t, b, 2)
		require.NotEqual(t, a[1], b[1])
	})

	t.Run("missing credentials", func(t *testing.T) {
		for _, params := range []auth.Params{
			{},
			{"key": "k"},
			{"secret": "s"},
			{"key": "", "secret": ""},
		} {
			s, err := signer.Create(auth.Wsse, params)
			require.NoError(t, err)

			signed, err := s.Sign(testOptions())
			require.Nil(t, signed)
			require.ErrorIs(t, err, signer.ErrMissingCredentials)
		}
	})
}
