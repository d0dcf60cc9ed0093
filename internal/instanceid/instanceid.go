// Package instanceid derives a stable per-process identifier used to
// reduce ABA collisions in tag-version tokens across process restarts.
package instanceid

import (
	"fmt"
	"hash/crc32"
	"os"
	"sync"
)

var (
	once  sync.Once
	value uint32
)

// Get returns crc32(pid || "@" || hostname), memoized for the life of
// the process. Any stable 32-bit value would satisfy the contract; this
// is the one the source implementation uses.
func Get() uint32 {
	once.Do(func() {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "unknown"
		}
		s := fmt.Sprintf("%d@%s", os.Getpid(), host)
		value = crc32.ChecksumIEEE([]byte(s))
	})
	return value
}
