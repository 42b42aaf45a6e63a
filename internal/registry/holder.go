package registry

import (
	"log"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Holder hands out the current registry and swaps in a new one on reload.
// Callers take one snapshot per request with Current.
type Holder struct {
	root    string
	current atomic.Pointer[Registry]
	group   singleflight.Group
}

// NewHolder wraps an already loaded registry.
func NewHolder(reg *Registry) *Holder {
	h := &Holder{root: reg.Root()}
	h.current.Store(reg)
	return h
}

// Current returns the registry in effect.
func (h *Holder) Current() *Registry {
	return h.current.Load()
}

// Reload loads the configuration root again. On failure the previous
// registry stays in effect and the error is returned. Concurrent calls share
// one load.
func (h *Holder) Reload() (*Registry, error) {
	v, err, _ := h.group.Do("reload", func() (any, error) {
		reg, err := Load(h.root)
		if err != nil {
			return nil, err
		}
		h.current.Store(reg)
		log.Printf("registry: reloaded from %s (fingerprint %.12s, %d packs)", h.root, reg.Fingerprint(), len(reg.packs))
		return reg, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Registry), nil
}

// ReloadIfChanged reloads only when the files under the root changed since
// the current registry was loaded.
func (h *Holder) ReloadIfChanged() (bool, error) {
	fp, err := DirFingerprint(h.root)
	if err != nil {
		return false, err
	}
	if fp == h.Current().Fingerprint() {
		return false, nil
	}
	if _, err := h.Reload(); err != nil {
		return false, err
	}
	return true, nil
}
