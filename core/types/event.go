package types

// Attribute is a single key/value pair attached to an Event. Attribute order
// is part of the audit trail and is preserved through encoding.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event represents a typed event emitted during state transitions.
type Event struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
}

// NewEvent builds an event of the given type. kv is read as alternating keys
// and values; a trailing key without a value is dropped.
func NewEvent(typ string, kv ...string) *Event {
	evt := &Event{Type: typ, Attributes: make([]Attribute, 0, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		evt.Attributes = append(evt.Attributes, Attribute{Key: kv[i], Value: kv[i+1]})
	}
	return evt
}

// Attr returns the first value stored under key.
func (e *Event) Attr(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, attr := range e.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// Map flattens the attributes into a map. Later duplicates win.
func (e *Event) Map() map[string]string {
	out := make(map[string]string)
	if e == nil {
		return out
	}
	for _, attr := range e.Attributes {
		out[attr.Key] = attr.Value
	}
	return out
}
