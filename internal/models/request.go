package models

// Header is a single name/value pair of a wire request.
type Header struct {
	Name  string `json:"name" validate:"required"`
	Value string `json:"value"`
}

// RequestOptions is a wire-ready request. It is built fresh for every
// dispatch and only a Signer adds to it afterwards.
type RequestOptions struct {
	URL     string   `json:"url" validate:"required,url"`
	Method  string   `json:"method" validate:"required,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	Headers []Header `json:"headers" validate:"dive"`
	Body    string   `json:"body"`
}

// Clone returns a deep copy of o.
func (o *RequestOptions) Clone() *RequestOptions {
	out := *o
	if o.Headers != nil {
		out.Headers = make([]Header, len(o.Headers))
		copy(out.Headers, o.Headers)
	}
	return &out
}

// Response is an HTTP reply as seen by the executor. Body is the raw text of
// the reply, never decoded.
type Response struct {
	Status     int               `json:"status,omitempty"`
	StatusText string            `json:"statusText,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body"`
}
