// Package sloghooks logs tagcache.Hooks events through a *slog.Logger,
// redacting item/tag keys by default (they may embed user identifiers)
// and sampling the highest-volume event to avoid flooding on a hot,
// noisy cache.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/tagcache"
)

type Options struct {
	// SelfHealEvery samples the highest-volume event; 0/1 = log all.
	SelfHealEvery uint64
	// Redact overrides the default SHA-256 key redactor.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
}

var _ tagcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SelfHealMiss(itemKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("tagcache.self_heal_miss",
		"key", h.redact(itemKey),
		"reason", reason)
}

func (h *Hooks) TagStoreError(op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("tagcache.tag_store_error",
		"op", op,
		"err", err)
}

func (h *Hooks) ProviderSetRejected(itemKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("tagcache.provider_set_rejected",
		"key", h.redact(itemKey))
}

func (h *Hooks) CommitPartial(attempted, persisted int) {
	if h.l == nil {
		return
	}
	h.l.Warn("tagcache.commit_partial",
		"attempted", attempted,
		"persisted", persisted)
}

func (h *Hooks) RetryConfigInvalid(reason string) {
	if h.l == nil {
		return
	}
	h.l.Error("tagcache.retry_config_invalid",
		"reason", reason)
}
