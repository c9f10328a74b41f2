package protocol

// Header maps header names to values. Unlike http.Header it holds a single
// value per name: the last write wins and names keep the case they were
// received with. Iteration follows first-insertion order so serialized
// output is deterministic.
type Header struct {
	keys   []string
	values map[string]string
}

// NewHeader returns an empty Header.
func NewHeader() Header {
	return Header{values: make(map[string]string)}
}

// Set stores value under key. Overwriting keeps the original position.
// Empty names are ignored so a Header never holds one.
func (h *Header) Set(key, value string) {
	if key == "" {
		return
	}
	if h.values == nil {
		h.values = make(map[string]string)
	}
	if _, ok := h.values[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.values[key] = value
}

// Get returns the value stored under key. Lookup is case-sensitive.
func (h Header) Get(key string) (string, bool) {
	v, ok := h.values[key]
	return v, ok
}

// Len returns the number of distinct names.
func (h Header) Len() int {
	return len(h.keys)
}

// Each calls fn for every entry in insertion order.
func (h Header) Each(fn func(key, value string)) {
	for _, k := range h.keys {
		fn(k, h.values[k])
	}
}

// Map returns a copy of the entries as a plain map.
func (h Header) Map() map[string]string {
	out := make(map[string]string, len(h.keys))
	for _, k := range h.keys {
		out[k] = h.values[k]
	}
	return out
}
