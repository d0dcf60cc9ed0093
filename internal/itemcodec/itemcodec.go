// Package itemcodec packs and unpacks the opaque per-item payload
// stored in the item pool: the user value, the tag versions the item
// was saved with, and optional expiry/creation-time metadata.
//
// The envelope is msgpack-encoded, keyed "$" (value), "#" (tag
// versions), "^" (packed metadata) — the same shape the tag-aware core
// validates on unpack. Only "^" carries a bespoke bit layout of its
// own; msgpack carries the envelope so the wire format stays
// self-describing and inspectable with any msgpack tool.
package itemcodec

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// MaxCtimeMS is the largest creation-time delta representable in the
// packed metadata (ctime is truncated to 1..4 little-endian bytes).
// Above this, ctime saturates rather than wrapping.
const MaxCtimeMS = math.MaxUint32

type envelope struct {
	Value []byte            `msgpack:"$"`
	Tags  map[string][]byte `msgpack:"#,omitempty"`
	Meta  []byte            `msgpack:"^,omitempty"`
}

// Pack encodes value with its attached tag versions and optional
// expiry/creation-time metadata into an opaque payload.
//
// expiry may be nil (no expiry metadata attached; the item is still
// validated by tags but can never be evicted on wall-clock mismatch).
// ctimeMS is a uint32 and so never exceeds MaxCtimeMS; a caller holding
// a longer duration saturates it before calling (the adapter's Commit
// does).
func Pack(value []byte, tagVersions map[string][]byte, expiry *time.Time, ctimeMS uint32) ([]byte, error) {
	env := envelope{Value: value}
	if len(tagVersions) > 0 {
		env.Tags = tagVersions
	}
	if expiry != nil {
		if ctimeMS > MaxCtimeMS {
			ctimeMS = MaxCtimeMS
		}
		env.Meta = packMeta(uint32(expiry.Unix()), ctimeMS)
	}
	return msgpack.Marshal(env)
}

// Unpack decodes a payload produced by Pack. It returns an error if the
// payload does not parse as a valid envelope: keys must be a subset of
// {$,#,^}, "$" required, "#" a map of string->bytes, "^" a byte string
// of length 4..8.
func Unpack(payload []byte) (value []byte, tagVersions map[string][]byte, expiry *time.Time, ctimeMS uint32, err error) {
	var raw map[string]msgpack.RawMessage
	if err = msgpack.Unmarshal(payload, &raw); err != nil {
		return nil, nil, nil, 0, fmt.Errorf("itemcodec: malformed envelope: %w", err)
	}
	for k := range raw {
		if k != "$" && k != "#" && k != "^" {
			return nil, nil, nil, 0, fmt.Errorf("itemcodec: unexpected key %q", k)
		}
	}
	valRaw, ok := raw["$"]
	if !ok {
		return nil, nil, nil, 0, fmt.Errorf("itemcodec: missing required key \"$\"")
	}
	if err = msgpack.Unmarshal(valRaw, &value); err != nil {
		return nil, nil, nil, 0, fmt.Errorf("itemcodec: bad value: %w", err)
	}

	if tagsRaw, ok := raw["#"]; ok {
		var tags map[string][]byte
		if err = msgpack.Unmarshal(tagsRaw, &tags); err != nil {
			return nil, nil, nil, 0, fmt.Errorf("itemcodec: bad tag map: %w", err)
		}
		tagVersions = tags
	}

	if metaRaw, ok := raw["^"]; ok {
		var meta []byte
		if err = msgpack.Unmarshal(metaRaw, &meta); err != nil {
			return nil, nil, nil, 0, fmt.Errorf("itemcodec: bad meta: %w", err)
		}
		if len(meta) < 4 || len(meta) > 8 {
			return nil, nil, nil, 0, fmt.Errorf("itemcodec: meta length %d out of [4,8]", len(meta))
		}
		exp, ct := unpackMeta(meta)
		t := time.Unix(int64(exp), 0)
		expiry = &t
		ctimeMS = ct
	}

	return value, tagVersions, expiry, ctimeMS, nil
}

// packMeta lays out (expiry:u32_be, ctime:u32_le) and truncates ctime
// to the minimal number of little-endian bytes that represent it
// (1..4), producing a 5..8 byte result.
func packMeta(expiry uint32, ctimeMS uint32) []byte {
	out := make([]byte, 4, 8)
	binary.BigEndian.PutUint32(out, expiry)

	var ct [4]byte
	binary.LittleEndian.PutUint32(ct[:], ctimeMS)

	n := 4
	for n > 1 && ct[n-1] == 0 {
		n--
	}
	return append(out, ct[:n]...)
}

// unpackMeta reverses packMeta. If meta is shorter than 8 bytes total
// (4 expiry + up to 4 ctime), the ctime tail is padded with zero bytes
// on the right before decoding.
func unpackMeta(meta []byte) (expiry uint32, ctimeMS uint32) {
	expiry = binary.BigEndian.Uint32(meta[:4])

	var ct [4]byte
	copy(ct[:], meta[4:])
	ctimeMS = binary.LittleEndian.Uint32(ct[:])
	return expiry, ctimeMS
}
