package codec

import "fmt"

// LimitCodec wraps another codec to enforce a maximum allowed payload
// size at Decode time. Encode forwards to Inner unchanged. MaxDecode<=0
// disables the limit.
//
// Use to protect against oversized payloads coming from a shared,
// multi-tenant pool.
type LimitCodec[V any] struct {
	Inner     Codec[V]
	MaxDecode int
}

func (c LimitCodec[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }
func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("codec: payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
