package common

import (
	"encoding/json"
	"errors"
	"github.com/ValentinKolb/rKV/lib/store"
	"testing"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	env := Envelope{Key: "alpha", Size: 12, Buffer: "token"}

	decoded, err := DecodeEnvelope(env.Encode())
	if err != nil {
		t.Fatalf("DecodeEnvelope failed: %v", err)
	}
	if decoded != env {
		t.Errorf("Expected %+v, got %+v", env, decoded)
	}
}

func TestEnvelopeEmptyValues(t *testing.T) {
	// present but empty fields are valid
	decoded, err := DecodeEnvelope(`{"key":"","size":0,"buffer":""}`)
	if err != nil {
		t.Fatalf("DecodeEnvelope failed: %v", err)
	}
	if decoded != (Envelope{}) {
		t.Errorf("Expected zero envelope, got %+v", decoded)
	}
}

func TestEnvelopeMalformed(t *testing.T) {
	tests := map[string]string{
		"invalid json":   `{"key":`,
		"missing key":    `{"size":1,"buffer":"b"}`,
		"missing size":   `{"key":"k","buffer":"b"}`,
		"missing buffer": `{"key":"k","size":1}`,
		"negative size":  `{"key":"k","size":-1,"buffer":"b"}`,
		"float size":     `{"key":"k","size":1.5,"buffer":"b"}`,
		"string size":    `{"key":"k","size":"1","buffer":"b"}`,
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEnvelope(doc)
			if !errors.Is(err, store.ErrMalformedEnvelope) {
				t.Errorf("Expected ErrMalformedEnvelope, got %v", err)
			}
		})
	}
}

func TestMessageTypeJSON(t *testing.T) {
	for _, mt := range []MessageType{MsgTSet, MsgTGet, MsgTGetSize, MsgTExists, MsgTSuccess, MsgTError} {
		b, err := json.Marshal(mt)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}

		var decoded MessageType
		if err := json.Unmarshal(b, &decoded); err != nil {
			t.Fatalf("Unmarshal of %s failed: %v", b, err)
		}
		if decoded != mt {
			t.Errorf("Expected %s, got %s", mt, decoded)
		}
	}

	var mt MessageType
	if err := json.Unmarshal([]byte(`"teleport"`), &mt); err == nil {
		t.Errorf("Expected error for unknown message type")
	}
}

func TestStatusJSON(t *testing.T) {
	msg := NewResponse(MsgTGet, StatusTransferFailed, 0, errors.New("peer gone"))
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Status != StatusTransferFailed || decoded.Err != "peer gone" {
		t.Errorf("Unexpected message after round trip: %+v", decoded)
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		addr     string
		protocol string
		endpoint string
		fail     bool
	}{
		{"tcp://127.0.0.1:9000", "tcp", "127.0.0.1:9000", false},
		{"127.0.0.1:9000", "tcp", "127.0.0.1:9000", false},
		{"unix:///tmp/rkv.sock", "unix", "/tmp/rkv.sock", false},
		{"HTTP://host:80", "http", "host:80", false},
		{"jsonrpc://host:80", "jsonrpc", "host:80", false},
		{"ucx://host:1", "", "", true},
		{"tcp://", "", "", true},
	}

	for _, tt := range tests {
		protocol, endpoint, err := ParseAddress(tt.addr)
		if tt.fail {
			if err == nil {
				t.Errorf("Expected error for %q", tt.addr)
			}
			continue
		}
		if err != nil {
			t.Errorf("Unexpected error for %q: %v", tt.addr, err)
			continue
		}
		if protocol != tt.protocol || endpoint != tt.endpoint {
			t.Errorf("ParseAddress(%q) = %q, %q", tt.addr, protocol, endpoint)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "warning", "error", "INFO"} {
		if _, err := ParseLogLevel(level); err != nil {
			t.Errorf("Unexpected error for %q: %v", level, err)
		}
	}
	if _, err := ParseLogLevel("loud"); err == nil {
		t.Errorf("Expected error for invalid level")
	}
	if err := InitLoggers("loud"); err == nil {
		t.Errorf("Expected InitLoggers to reject invalid level")
	}
}
