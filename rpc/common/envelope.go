package common

import (
	"bytes"
	"encoding/json"
	"github.com/ValentinKolb/rKV/lib/store"
)

// --------------------------------------------------------------------------
// Envelope (request metadata)
// --------------------------------------------------------------------------

// Envelope carries the arguments of a provider operation. It travels as a
// JSON document inside the single string field of a request, so any
// transport that can move a string can carry it.
type Envelope struct {
	Key    string `json:"key"`
	Size   uint64 `json:"size"`   // payload size (set) or capacity of the remote buffer (get, get_size, exists)
	Buffer string `json:"buffer"` // bulk.Descriptor token of the caller's registered region
}

// Encode returns the JSON form of the envelope
func (e Envelope) Encode() string {
	// a struct of strings and integers always marshals
	b, _ := json.Marshal(e)
	return string(b)
}

// rawEnvelope detects absent fields, which the zero values of Envelope cannot
type rawEnvelope struct {
	Key    *string      `json:"key"`
	Size   *json.Number `json:"size"`
	Buffer *string      `json:"buffer"`
}

// DecodeEnvelope parses an encoded envelope. It fails with
// store.ErrMalformedEnvelope if the document is invalid, a field is missing
// or the size is not a non-negative integer.
func DecodeEnvelope(s string) (Envelope, error) {
	var raw rawEnvelope

	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Envelope{}, store.Errorf(store.RetCMalformedEnvelope, "invalid envelope: %v", err)
	}

	switch {
	case raw.Key == nil:
		return Envelope{}, store.NewError(store.RetCMalformedEnvelope, "envelope is missing the key field")
	case raw.Size == nil:
		return Envelope{}, store.NewError(store.RetCMalformedEnvelope, "envelope is missing the size field")
	case raw.Buffer == nil:
		return Envelope{}, store.NewError(store.RetCMalformedEnvelope, "envelope is missing the buffer field")
	}

	size, err := parseSize(*raw.Size)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{Key: *raw.Key, Size: size, Buffer: *raw.Buffer}, nil
}

func parseSize(n json.Number) (uint64, error) {
	i, err := n.Int64()
	if err != nil {
		return 0, store.Errorf(store.RetCMalformedEnvelope, "envelope size %q is not an integer", n.String())
	}
	if i < 0 {
		return 0, store.Errorf(store.RetCMalformedEnvelope, "envelope size %d is negative", i)
	}
	return uint64(i), nil
}
