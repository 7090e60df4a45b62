package classify

import (
	"bytes"
	"sync"
)

// FingerprintList answers whether a sample carries a known-hostile byte
// pattern. It is an interface, not a hardcoded list, so the set of
// patterns can be swapped out (e.g. loaded from a file and hot-reloaded)
// without touching Classifier.
type FingerprintList interface {
	Contains(sample []byte) bool
}

// StaticFingerprints is a FingerprintList backed by an in-memory, mutable
// set of substrings. It is safe for concurrent use: Set replaces the whole
// list atomically under a lock, Contains reads under the same lock.
type StaticFingerprints struct {
	mu   sync.RWMutex
	subs [][]byte
}

// DefaultFingerprints returns the list the classifier starts with: a
// single hostile signature, as specified.
func DefaultFingerprints() *StaticFingerprints {
	return NewStaticFingerprints("FOO")
}

// NewStaticFingerprints builds a StaticFingerprints from the given
// substrings.
func NewStaticFingerprints(subs ...string) *StaticFingerprints {
	f := &StaticFingerprints{}
	f.Set(subs...)
	return f
}

// Set replaces the whole list of hostile substrings.
func (f *StaticFingerprints) Set(subs ...string) {
	next := make([][]byte, len(subs))
	for i, s := range subs {
		next[i] = []byte(s)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = next
}

// Contains reports whether sample contains any configured substring.
func (f *StaticFingerprints) Contains(sample []byte) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, sub := range f.subs {
		if bytes.Contains(sample, sub) {
			return true
		}
	}
	return false
}
