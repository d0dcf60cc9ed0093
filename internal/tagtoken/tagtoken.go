// Package tagtoken generates tag-version tokens shared by every
// tagstore.Store implementation: random_u32 || instance_id_u32.
package tagtoken

import (
	"encoding/binary"

	"github.com/unkn0wn-root/tagcache/internal/instanceid"
	"github.com/unkn0wn-root/tagcache/internal/xrand"
)

// New generates a fresh 8-byte tag-version token. instance_id reduces
// ABA probability across process restarts; the random half makes two
// concurrent creators racing the same tag vanishingly unlikely to
// agree on a value.
func New() []byte {
	var b [8]byte
	binary.BigEndian.PutUint32(b[0:4], xrand.Uint32())
	binary.BigEndian.PutUint32(b[4:8], instanceid.Get())
	return b[:]
}
