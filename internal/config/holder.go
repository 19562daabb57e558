package config

import "sync/atomic"

// Holder keeps the current configuration behind an atomic pointer so every
// request can take one consistent snapshot at its start. Reload replaces
// the whole value; a snapshot taken before a reload never observes the new
// configuration mid-request.
type Holder struct {
	ptr  atomic.Pointer[AppConfig]
	path string
}

// NewHolder wraps an already-loaded config. path is remembered for Reload
// and may be empty when reloading is not wanted.
func NewHolder(cfg *AppConfig, path string) *Holder {
	h := &Holder{path: path}
	h.ptr.Store(cfg)
	return h
}

// Snapshot returns the current configuration. Callers must treat the
// returned value as read-only.
func (h *Holder) Snapshot() *AppConfig {
	return h.ptr.Load()
}

// Reload re-reads the config file and swaps it in atomically.
func (h *Holder) Reload() (*AppConfig, error) {
	cfg, err := Load(h.path)
	if err != nil {
		return nil, err
	}
	h.ptr.Store(cfg)
	return cfg, nil
}
