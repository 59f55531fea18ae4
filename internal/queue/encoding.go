package queue

import (
	"encoding/json"
	"fmt"

	"phredmean/internal/codec"
)

// encode serializes v as JSON and compresses it. The first byte of the
// result names the codec so the reader needs no negotiation.
func encode(t codec.Type, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	c, err := codec.GetCodec(t)
	if err != nil {
		return nil, err
	}
	body, err := c.Compress(raw)
	if err != nil {
		return nil, fmt.Errorf("compress %s: %w", t, err)
	}
	out := make([]byte, 1+len(body))
	out[0] = byte(t)
	copy(out[1:], body)
	return out, nil
}

func decode(b []byte, v any) error {
	if len(b) == 0 {
		return fmt.Errorf("queue: empty payload")
	}
	c, err := codec.GetCodec(codec.Type(b[0]))
	if err != nil {
		return err
	}
	raw, err := c.Decompress(b[1:])
	if err != nil {
		return fmt.Errorf("decompress %s: %w", codec.Type(b[0]), err)
	}
	return json.Unmarshal(raw, v)
}
