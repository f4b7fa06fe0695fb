package dispatcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/whookdev/composer/internal/auth"
	"github.com/whookdev/composer/internal/models"
	"github.com/whookdev/composer/internal/signer"
	"github.com/whookdev/composer/internal/store"
)

type recordingChannel struct {
	mu     sync.Mutex
	sent   []*models.Message
	err    error
	onSend func(msg *models.Message)
}

func (c *recordingChannel) Send(_ context.Context, msg *models.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.onSend != nil {
		c.onSend(msg)
	}
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *recordingChannel) last(t *testing.T) *models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.sent)
	return c.sent[len(c.sent)-1]
}

func newDispatcher(t *testing.T, options ...signer.Option) (*Dispatcher, *recordingChannel) {
	ch := &recordingChannel{}
	d, err := New(store.New(), ch, slog.New(slog.NewTextHandler(io.Discard, nil)), options...)
	require.NoError(t, err)
	return d, ch
}

func TestNew(t *testing.T) {
	logger := slog.Default()
	_, err := New(nil, &recordingChannel{}, logger)
	require.EqualError(t, err, "store cannot be nil")
	_, err = New(store.New(), nil, logger)
	require.EqualError(t, err, "channel cannot be nil")
}

func TestSetNetworkStatus(t *testing.T) {
	d, _ := newDispatcher(t)
	d.SetNetworkStatus(store.Offline)
	require.Equal(t, store.Offline, d.State().NetworkStatus)
}

func TestSetURL(t *testing.T) {
	d, _ := newDispatcher(t)
	d.SetURL("https://new.url")
	require.Equal(t, "https://new.url", d.State().Request.URL)
}

func TestSendRequest(t *testing.T) {
	t.Run("sends the request url", func(t *testing.T) {
		d, ch := newDispatcher(t)
		d.SetURL("https://request.url")

		require.NoError(t, d.SendRequest(context.Background()))

		msg := ch.last(t)
		require.Equal(t, models.TypeSendRequest, msg.Type)
		require.NotEmpty(t, msg.RequestID)
		require.Equal(t, "https://request.url", msg.Request.URL)
	})

	t.Run("sends the selected authentication with its params", func(t *testing.T) {
		created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		d, ch := newDispatcher(t,
			signer.WithClock(signer.FixedClock(created)),
			signer.WithNonceSource(signer.FixedNonce("abc123")),
		)
		params := auth.Params{"key": "wssekey", "secret": "wssesecret"}

		require.NoError(t, d.SelectAuthType("wsse"))
		d.SetAuthParams(params)
		require.NoError(t, d.SendRequest(context.Background()))

		msg := ch.last(t)
		require.Equal(t, auth.Wsse, msg.Request.AuthType)
		require.Equal(t, params, msg.Request.AuthParams)
		require.Equal(t, []models.Header{
			{Name: "content-type", Value: "application/json"},
			{Name: signer.WsseHeader, Value: signer.WsseHeaderValue("wssekey", "abc123", "2024-01-02T03:04:05Z", "wssesecret")},
		}, msg.Request.Headers)

		// the store keeps what the user entered
		require.Len(t, d.State().Request.Headers, 1)
	})

	t.Run("sends the request method", func(t *testing.T) {
		d, ch := newDispatcher(t)
		require.NoError(t, d.SelectHTTPMethod("POST"))
		require.NoError(t, d.SendRequest(context.Background()))
		require.Equal(t, "POST", ch.last(t).Request.Method)
	})

	t.Run("sends the request body", func(t *testing.T) {
		d, ch := newDispatcher(t)
		d.SetRequestBody(`{"foo": "bar"}`)
		require.NoError(t, d.SendRequest(context.Background()))
		require.Equal(t, `{"foo": "bar"}`, ch.last(t).Request.Body)
	})

	t.Run("sends only checked headers", func(t *testing.T) {
		st := store.New()
		st.AddHeader(store.Header{Name: "X-Debug", Value: "1", SendingStatus: false})
		st.AddHeader(store.Header{Name: "Accept", Value: "*/*", SendingStatus: true})
		ch := &recordingChannel{}
		d, err := New(st, ch, slog.Default())
		require.NoError(t, err)

		require.NoError(t, d.SendRequest(context.Background()))
		require.Equal(t, []models.Header{
			{Name: "content-type", Value: "application/json"},
			{Name: "Accept", Value: "*/*"},
		}, ch.last(t).Request.Headers)
	})

	t.Run("sends while offline", func(t *testing.T) {
		d, ch := newDispatcher(t)
		d.SetNetworkStatus(store.Offline)
		require.NoError(t, d.SendRequest(context.Background()))
		require.Len(t, ch.sent, 1)
	})

	t.Run("missing credentials block the send", func(t *testing.T) {
		d, ch := newDispatcher(t)
		require.NoError(t, d.SelectAuthType("wsse"))
		d.SetAuthParams(auth.Params{"key": "wssekey"})

		err := d.SendRequest(context.Background())
		require.ErrorIs(t, err, signer.ErrMissingCredentials)
		require.Empty(t, ch.sent)
	})

	t.Run("channel failure is returned", func(t *testing.T) {
		d, ch := newDispatcher(t)
		ch.err = errors.New("tunnel closed")
		require.ErrorContains(t, d.SendRequest(context.Background()), "tunnel closed")
	})
}

func TestBuildRequestOptionsWithoutHeaders(t *testing.T) {
	opts := BuildRequestOptions(store.Request{URL: "http://x", Method: "GET"})
	require.NotNil(t, opts.Headers)
	require.Empty(t, opts.Headers)
}

func TestReceiveResponse(t *testing.T) {
	t.Run("stores the received response", func(t *testing.T) {
		d, _ := newDispatcher(t)
		d.ReceiveResponse(models.Reply{Response: &models.Response{Body: `{"key":"value"}`}})
		require.Equal(t, models.Response{Body: `{"key":"value"}`}, d.State().Response)
	})

	t.Run("stores the actual request headers", func(t *testing.T) {
		d, _ := newDispatcher(t)
		d.ReceiveResponse(models.Reply{RequestHeaders: map[string]string{"x-my-header": "some_value"}})
		require.Equal(t, map[string]string{"x-my-header": "some_value"}, d.State().SentRequestHeaders)
	})

	t.Run("replaces instead of merging", func(t *testing.T) {
		d, _ := newDispatcher(t)
		d.ReceiveResponse(models.Reply{
			Response:       &models.Response{Status: 500, StatusText: "Internal Server Error", Body: "boom"},
			RequestHeaders: map[string]string{"a": "1", "b": "2"},
		})
		d.ReceiveResponse(models.Reply{
			Response:       &models.Response{Body: `{"key":"value"}`},
			RequestHeaders: map[string]string{"c": "3"},
		})

		state := d.State()
		require.Equal(t, models.Response{Body: `{"key":"value"}`}, state.Response)
		require.Equal(t, map[string]string{"c": "3"}, state.SentRequestHeaders)
	})

	t.Run("transport errors keep the last response", func(t *testing.T) {
		d, _ := newDispatcher(t)
		d.ReceiveResponse(models.Reply{Response: &models.Response{Status: 200, Body: "ok"}})
		d.ReceiveResponse(models.Reply{Error: &models.ReplyError{Kind: models.ErrorKindTimeout, Message: "deadline exceeded"}})

		state := d.State()
		require.Equal(t, "ok", state.Response.Body)
		require.Equal(t, &models.ReplyError{Kind: models.ErrorKindTimeout, Message: "deadline exceeded"}, state.LastError)
	})
}

func TestSelectAuthType(t *testing.T) {
	d, _ := newDispatcher(t)
	d.SetAuthParams(auth.Params{"key": "k", "secret": "s"})

	require.NoError(t, d.SelectAuthType("wsse"))
	state := d.State()
	require.Equal(t, auth.Wsse, state.Auth.Selected)
	require.Equal(t, auth.Params{}, state.Auth.Params)

	err := d.SelectAuthType("kerberos")
	var unknown *signer.UnknownAuthTypeError
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, auth.Wsse, d.State().Auth.Selected)
}

func TestSetAuthParams(t *testing.T) {
	d, _ := newDispatcher(t)
	d.SetAuthParams(auth.Params{"key": "", "secret": ""})
	require.Equal(t, auth.Params{"key": "", "secret": ""}, d.State().Auth.Params)
}

func TestSelectContentType(t *testing.T) {
	d, _ := newDispatcher(t)
	require.NoError(t, d.SelectContentType(store.JSON))
	require.Equal(t, store.JSON, d.State().Request.ContentType)
}

func TestListen(t *testing.T) {
	d, ch := newDispatcher(t)
	require.NoError(t, d.SendRequest(context.Background()))
	requestID := ch.last(t).RequestID

	msgs := make(chan *models.Message, 3)
	msgs <- &models.Message{Type: models.TypeSendRequest, RequestID: "ignored"}
	msgs <- &models.Message{Type: models.TypeResponse, RequestID: "req_old", Reply: &models.Reply{Response: &models.Response{Body: "old"}}}
	msgs <- &models.Message{Type: models.TypeResponse, RequestID: requestID, Reply: &models.Reply{Response: &models.Response{Body: "new"}}}
	close(msgs)

	require.NoError(t, d.Listen(context.Background(), msgs))
	require.Equal(t, "new", d.State().Response.Body)

	select {
	case <-d.Updates():
	default:
		t.Fatal("expected an update notification")
	}
}

func TestRequestIDRecordedBeforeSend(t *testing.T) {
	d, ch := newDispatcher(t)

	var during string
	ch.onSend = func(*models.Message) {
		during = d.latestRequestID()
	}

	require.NoError(t, d.SendRequest(context.Background()))
	require.Equal(t, ch.last(t).RequestID, during)
}

func TestSetHeader(t *testing.T) {
	d, _ := newDispatcher(t)

	require.NoError(t, d.SetHeader(store.Header{Name: "Content-Type", Value: "text/plain", SendingStatus: true}))
	require.NoError(t, d.SetHeader(store.Header{Name: "Accept", Value: "*/*", SendingStatus: true}))

	require.Equal(t, []store.Header{
		{Name: "Content-Type", Value: "text/plain", SendingStatus: true},
		{Name: "Accept", Value: "*/*", SendingStatus: true},
	}, d.State().Request.Headers)
}

func TestListenStopsOnContext(t *testing.T) {
	d, _ := newDispatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Listen(ctx, make(chan *models.Message))
	require.ErrorIs(t, err, context.Canceled)
}
