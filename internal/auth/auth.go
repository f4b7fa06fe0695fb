// Package auth lists the authentication schemes a request can be signed with.
package auth

// Type identifies an authentication scheme.
type Type string

const (
	None Type = "none"
	Wsse Type = "wsse"
)

// Params holds the credentials of a scheme, e.g. key and secret for wsse.
type Params map[string]string

// Clone returns a copy of p that is never nil.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Entry is a registered scheme together with its display label.
type Entry struct {
	ID    Type   `json:"id"`
	Label string `json:"label"`
}

var registry = []Entry{
	{ID: None, Label: "None"},
	{ID: Wsse, Label: "WSSE"},
}

// Types returns the registered schemes in display order.
func Types() []Entry {
	out := make([]Entry, len(registry))
	copy(out, registry)
	return out
}

// Lookup resolves id to its registered entry.
func Lookup(id string) (Entry, bool) {
	for _, e := range registry {
		if string(e.ID) == id {
			return e, true
		}
	}
	return Entry{}, false
}
