package store

import (
	"net/http"

	"github.com/whookdev/composer/internal/auth"
	"github.com/whookdev/composer/internal/models"
)

type NetworkStatus string

const (
	Online  NetworkStatus = "online"
	Offline NetworkStatus = "offline"
)

type ContentType string

const (
	Custom ContentType = "custom"
	JSON   ContentType = "json"
	XML    ContentType = "xml"
	Form   ContentType = "form"
	Text   ContentType = "text"
)

var mimeTypes = map[ContentType]string{
	JSON: "application/json",
	XML:  "application/xml",
	Form: "application/x-www-form-urlencoded",
	Text: "text/plain",
}

// MIME returns the media type of c. Custom has none: the user edits the
// content-type header directly.
func (c ContentType) MIME() (string, bool) {
	m, ok := mimeTypes[c]
	return m, ok
}

func (c ContentType) valid() bool {
	_, ok := mimeTypes[c]
	return ok || c == Custom
}

var Methods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodHead,
	http.MethodOptions,
}

const ContentTypeHeader = "content-type"

// Header is a request header as edited by the user. Only headers with
// SendingStatus set are put on the wire.
type Header struct {
	Name          string `json:"name"`
	Value         string `json:"value"`
	SendingStatus bool   `json:"sendingStatus"`
}

type Request struct {
	URL         string      `json:"url"`
	Method      string      `json:"method"`
	Headers     []Header    `json:"headers"`
	Body        string      `json:"body"`
	ContentType ContentType `json:"contentType"`
}

type Auth struct {
	Selected auth.Type   `json:"selected"`
	Params   auth.Params `json:"params"`
}

// State is a point-in-time copy of everything the store holds.
type State struct {
	NetworkStatus      NetworkStatus      `json:"networkStatus"`
	Request            Request            `json:"request"`
	Auth               Auth               `json:"auth"`
	Response           models.Response    `json:"response"`
	SentRequestHeaders map[string]string  `json:"sentRequestHeaders"`
	LastError          *models.ReplyError `json:"lastError,omitempty"`
}

func (s State) clone() State {
	out := s
	out.Request.Headers = append([]Header(nil), s.Request.Headers...)
	out.Auth.Params = s.Auth.Params.Clone()
	out.Response.Headers = cloneMap(s.Response.Headers)
	out.SentRequestHeaders = cloneMap(s.SentRequestHeaders)
	if s.LastError != nil {
		e := *s.LastError
		out.LastError = &e
	}
	return out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
