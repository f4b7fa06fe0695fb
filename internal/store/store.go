// Package store owns the request being composed and the last response
// received for it.
//
// Every change goes through a named transition that holds the store lock for
// its own write only. Readers get copies through Snapshot.
package store

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/whookdev/composer/internal/auth"
	"github.com/whookdev/composer/internal/models"
)

var (
	ErrUnknownMethod      = errors.New("unknown http method")
	ErrUnknownContentType = errors.New("unknown content type")
	ErrUnknownAuthType    = errors.New("unknown auth type")
	ErrHeaderIndex        = errors.New("header index out of range")
	ErrContentTypeHeader  = errors.New("content-type header cannot be removed")
)

type Store struct {
	mu    sync.RWMutex
	state State
}

func New() *Store {
	return &Store{state: initialState()}
}

func initialState() State {
	return State{
		NetworkStatus: Online,
		Request: Request{
			URL:    "",
			Method: "GET",
			Headers: []Header{
				{Name: ContentTypeHeader, Value: "application/json", SendingStatus: true},
			},
			Body:        "",
			ContentType: Custom,
		},
		Auth: Auth{
			Selected: auth.None,
			Params:   auth.Params{},
		},
	}
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *Store) SetNetworkStatus(status NetworkStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.NetworkStatus = status
}

func (s *Store) UpdateURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Request.URL = url
}

// SelectAuthType switches the scheme and drops the credentials of the
// previous one.
func (s *Store) SelectAuthType(t auth.Type) error {
	if _, ok := auth.Lookup(string(t)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAuthType, t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Auth.Selected = t
	s.state.Auth.Params = auth.Params{}
	return nil
}

func (s *Store) SetAuthParams(params auth.Params) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Auth.Params = params.Clone()
}

func (s *Store) SelectHTTPMethod(method string) error {
	method = strings.ToUpper(method)
	if !slices.Contains(Methods, method) {
		return fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Request.Method = method
	return nil
}

func (s *Store) SetRequestBody(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Request.Body = body
}

// SelectContentType records c and, unless c is Custom, rewrites the
// content-type header to match it.
func (s *Store) SelectContentType(c ContentType) error {
	if !c.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownContentType, c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Request.ContentType = c
	if mime, ok := c.MIME(); ok {
		i := s.contentTypeIndex()
		s.state.Request.Headers[i].Value = mime
		s.state.Request.Headers[i].SendingStatus = true
	}
	return nil
}

func (s *Store) AddHeader(h Header) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Request.Headers = append(s.state.Request.Headers, h)
}

func (s *Store) UpdateHeader(i int, h Header) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.state.Request.Headers) {
		return ErrHeaderIndex
	}
	if isContentType(s.state.Request.Headers[i].Name) && !isContentType(h.Name) && s.countContentType() == 1 {
		return ErrContentTypeHeader
	}
	s.state.Request.Headers[i] = h
	return nil
}

func (s *Store) RemoveHeader(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.state.Request.Headers) {
		return ErrHeaderIndex
	}
	if isContentType(s.state.Request.Headers[i].Name) && s.countContentType() == 1 {
		return ErrContentTypeHeader
	}
	s.state.Request.Headers = slices.Delete(s.state.Request.Headers, i, i+1)
	return nil
}

// ToggleHeader flips whether the header at i is sent.
func (s *Store) ToggleHeader(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.state.Request.Headers) {
		return ErrHeaderIndex
	}
	s.state.Request.Headers[i].SendingStatus = !s.state.Request.Headers[i].SendingStatus
	return nil
}

// SetResponse replaces the last response and the headers that were sent
// with it. Neither is merged with its previous value.
func (s *Store) SetResponse(resp models.Response, sentHeaders map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Response = resp
	s.state.SentRequestHeaders = cloneMap(sentHeaders)
	s.state.LastError = nil
}

// SetLastError records a transport failure. The last response is kept.
func (s *Store) SetLastError(e *models.ReplyError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastError = e
}

// contentTypeIndex must be called with the lock held.
func (s *Store) contentTypeIndex() int {
	return slices.IndexFunc(s.state.Request.Headers, func(h Header) bool {
		return isContentType(h.Name)
	})
}

func (s *Store) countContentType() int {
	n := 0
	for _, h := range s.state.Request.Headers {
		if isContentType(h.Name) {
			n++
		}
	}
	return n
}

func isContentType(name string) bool {
	return strings.EqualFold(name, ContentTypeHeader)
}
