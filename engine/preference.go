package engine

import (
	"sync"
	"time"
)

// preferenceEntry stores the preferred engine for a key with a TTL.
type preferenceEntry struct {
	engineName string
	expiresAt  time.Time
}

// Preference remembers which engine last produced a usable snapshot so the
// dispatcher can try it first. Entries expire after the configured TTL and
// are dropped lazily on lookup.
type Preference struct {
	mu    sync.Mutex
	store map[string]preferenceEntry
	ttl   time.Duration
	now   func() time.Time
}

// NewPreference creates a Preference with the given TTL.
func NewPreference(ttl time.Duration) *Preference {
	return &Preference{
		store: make(map[string]preferenceEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the remembered engine name for key, or "" if none or expired.
func (p *Preference) Get(key string) string {
	if p == nil {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.store[key]
	if !ok {
		return ""
	}
	if p.now().After(e.expiresAt) {
		delete(p.store, key)
		return ""
	}
	return e.engineName
}

// Set records which engine succeeded for key.
func (p *Preference) Set(key, engineName string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.store[key] = preferenceEntry{engineName: engineName, expiresAt: p.now().Add(p.ttl)}
	p.mu.Unlock()
}

// Delete forgets key, e.g. after the remembered engine failed.
func (p *Preference) Delete(key string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	delete(p.store, key)
	p.mu.Unlock()
}
