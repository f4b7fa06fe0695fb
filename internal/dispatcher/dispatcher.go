// Package dispatcher turns the composed request into a signed send-request
// message and folds replies back into the store.
//
// The channel carries no correlation between a request and its reply. Each
// message gets a request id for logging, but replies are applied in arrival
// order: when two requests are in flight the store ends up holding whichever
// reply arrived last, which is not necessarily the one for the latest
// request.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/whookdev/composer/internal/auth"
	"github.com/whookdev/composer/internal/models"
	"github.com/whookdev/composer/internal/signer"
	"github.com/whookdev/composer/internal/store"
)

// Channel is the outbound leg of the message channel to the executor.
type Channel interface {
	Send(ctx context.Context, msg *models.Message) error
}

type Dispatcher struct {
	store   *store.Store
	channel Channel
	logger  *slog.Logger

	signerOptions []signer.Option

	updates chan struct{}

	mu       sync.Mutex
	lastSent string
}

func New(st *store.Store, channel Channel, logger *slog.Logger, options ...signer.Option) (*Dispatcher, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if channel == nil {
		return nil, fmt.Errorf("channel cannot be nil")
	}

	return &Dispatcher{
		store:         st,
		channel:       channel,
		logger:        logger.With("component", "dispatcher"),
		signerOptions: options,
		updates:       make(chan struct{}, 1),
	}, nil
}

// State returns a copy of the current state.
func (d *Dispatcher) State() store.State {
	return d.store.Snapshot()
}

// SendRequest builds, signs and sends the current request. It returns as
// soon as the message is handed to the channel; the reply is applied later
// by Listen. Signing failures return before anything is sent.
func (d *Dispatcher) SendRequest(ctx context.Context) error {
	state := d.store.Snapshot()
	opts := BuildRequestOptions(state.Request)

	s, err := signer.Create(state.Auth.Selected, state.Auth.Params, d.signerOptions...)
	if err != nil {
		return fmt.Errorf("resolving signer: %w", err)
	}

	signed, err := s.Sign(opts)
	if err != nil {
		return fmt.Errorf("signing request: %w", err)
	}

	if state.NetworkStatus == store.Offline {
		d.logger.Warn("sending request while offline", "url", signed.URL)
	}

	msg := &models.Message{
		Type:      models.TypeSendRequest,
		RequestID: generateRequestID(),
		Request: &models.SendRequest{
			RequestOptions: *signed,
			AuthType:       state.Auth.Selected,
			AuthParams:     state.Auth.Params.Clone(),
		},
	}

	d.mu.Lock()
	d.lastSent = msg.RequestID
	d.mu.Unlock()

	if err := d.channel.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending request: %w", err)
	}

	d.logger.Info("request sent",
		"request_id", msg.RequestID,
		"method", signed.Method,
		"url", signed.URL,
		"auth_type", state.Auth.Selected)
	return nil
}

// BuildRequestOptions produces the wire request for r. Headers the user
// unchecked stay out.
func BuildRequestOptions(r store.Request) *models.RequestOptions {
	headers := make([]models.Header, 0, len(r.Headers))
	for _, h := range r.Headers {
		if !h.SendingStatus {
			continue
		}
		headers = append(headers, models.Header{Name: h.Name, Value: h.Value})
	}

	return &models.RequestOptions{
		URL:     r.URL,
		Method:  r.Method,
		Headers: headers,
		Body:    r.Body,
	}
}

// ReceiveResponse applies a reply. The response and the sent headers are
// both replaced, never merged. A transport failure is recorded without
// touching the last response.
func (d *Dispatcher) ReceiveResponse(reply models.Reply) {
	if reply.Error != nil {
		d.logger.Warn("request failed", "kind", reply.Error.Kind, "error", reply.Error.Message)
		d.store.SetLastError(reply.Error)
		return
	}

	var resp models.Response
	if reply.Response != nil {
		resp = *reply.Response
	}
	d.store.SetResponse(resp, reply.RequestHeaders)
}

// Listen applies every response message from msgs until msgs is closed or
// ctx is done. It is the only place replies enter the store.
func (d *Dispatcher) Listen(ctx context.Context, msgs <-chan *models.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if msg.Type != models.TypeResponse || msg.Reply == nil {
				d.logger.Warn("ignoring message", "type", msg.Type, "request_id", msg.RequestID)
				continue
			}

			latest := d.latestRequestID()
			if msg.RequestID != latest {
				d.logger.Warn("applying reply to an earlier request",
					"request_id", msg.RequestID,
					"latest_request_id", latest)
			}

			d.ReceiveResponse(*msg.Reply)
			d.notify()
		}
	}
}

// Updates receives a value after replies were applied. Notifications that
// nobody picked up are coalesced.
func (d *Dispatcher) Updates() <-chan struct{} {
	return d.updates
}

func (d *Dispatcher) notify() {
	select {
	case d.updates <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) SetNetworkStatus(status store.NetworkStatus) {
	d.store.SetNetworkStatus(status)
}

func (d *Dispatcher) SetURL(url string) {
	d.store.UpdateURL(url)
}

// SelectAuthType switches scheme. The params of the previous scheme are
// dropped.
func (d *Dispatcher) SelectAuthType(id string) error {
	entry, ok := auth.Lookup(id)
	if !ok {
		return fmt.Errorf("selecting auth type: %w", &signer.UnknownAuthTypeError{AuthType: auth.Type(id)})
	}
	return d.store.SelectAuthType(entry.ID)
}

func (d *Dispatcher) SetAuthParams(params auth.Params) {
	d.store.SetAuthParams(params)
}

func (d *Dispatcher) SelectHTTPMethod(method string) error {
	return d.store.SelectHTTPMethod(method)
}

func (d *Dispatcher) AddHeader(h store.Header) {
	d.store.AddHeader(h)
}

// SetHeader replaces the content-type row when h is a content-type header
// and appends h otherwise.
func (d *Dispatcher) SetHeader(h store.Header) error {
	if !strings.EqualFold(h.Name, store.ContentTypeHeader) {
		d.store.AddHeader(h)
		return nil
	}

	i := slices.IndexFunc(d.store.Snapshot().Request.Headers, func(e store.Header) bool {
		return strings.EqualFold(e.Name, store.ContentTypeHeader)
	})
	if i < 0 {
		d.store.AddHeader(h)
		return nil
	}
	return d.store.UpdateHeader(i, h)
}

func (d *Dispatcher) SetRequestBody(body string) {
	d.store.SetRequestBody(body)
}

func (d *Dispatcher) SelectContentType(c store.ContentType) error {
	return d.store.SelectContentType(c)
}

func (d *Dispatcher) latestRequestID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSent
}

func generateRequestID() string {
	return fmt.Sprintf("req_%s", uuid.New().String())
}
