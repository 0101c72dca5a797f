package pub

import (
	"encoding/base64"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"winsync/internal/types"
)

const (
	EncodingJSON = "json"
	EncodingZstd = "zstd+base64url"
)

var enc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
var dec, _ = zstd.NewReader(nil)

// Envelope is the published frame. Body is the batch itself for EncodingJSON and a quoted
// string holding EncodePayload output for EncodingZstd.
type Envelope struct {
	Encoding string          `json:"encoding"`
	Body     json.RawMessage `json:"body"`
}

// EncodePayload compresses and base64-url encodes b.
func EncodePayload(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(enc.EncodeAll(b, make([]byte, 0, len(b))))
}

// DecodePayload reverses EncodePayload.
func DecodePayload(in string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(in)
	if err != nil {
		return []byte{}, err
	}
	out, err := dec.DecodeAll(b, nil)
	if err != nil {
		return []byte{}, err
	}
	return out, nil
}

// EncodeBatch frames a batch, compressing it when its JSON is longer than threshold.
// A threshold of 0 never compresses.
func EncodeBatch(b types.Batch, threshold int) ([]byte, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	env := Envelope{Encoding: EncodingJSON, Body: raw}
	if threshold > 0 && len(raw) > threshold {
		quoted, err := json.Marshal(EncodePayload(raw))
		if err != nil {
			return nil, err
		}
		env = Envelope{Encoding: EncodingZstd, Body: quoted}
	}
	return json.Marshal(env)
}

// DecodeBatch parses a frame produced by EncodeBatch.
func DecodeBatch(frame []byte) (types.Batch, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return types.Batch{}, err
	}
	raw := []byte(env.Body)
	switch env.Encoding {
	case EncodingJSON:
	case EncodingZstd:
		var s string
		if err := json.Unmarshal(env.Body, &s); err != nil {
			return types.Batch{}, err
		}
		out, err := DecodePayload(s)
		if err != nil {
			return types.Batch{}, err
		}
		raw = out
	default:
		return types.Batch{}, fmt.Errorf("unknown frame encoding %q", env.Encoding)
	}
	var b types.Batch
	if err := json.Unmarshal(raw, &b); err != nil {
		return types.Batch{}, err
	}
	return b, nil
}
