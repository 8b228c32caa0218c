// Package memory keeps artifacts and batch state in process memory. It backs
// tests, dry runs and the HTTP API's batch registry.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/logo-resolver/internal/storage"
)

// Object is one stored artifact.
type Object struct {
	ContentType string
	Data        []byte
}

// Sink stores artifacts in a map and returns memory:// URIs.
type Sink struct {
	mu      sync.RWMutex
	prefix  string
	objects map[string]Object
}

// NewSink creates an empty in-memory sink.
func NewSink(prefix string) *Sink {
	return &Sink{prefix: prefix, objects: make(map[string]Object)}
}

// Store copies data under name.
func (s *Sink) Store(_ context.Context, name string, contentType string, data []byte) (string, error) {
	key, err := storage.ObjectKey(s.prefix, name)
	if err != nil {
		return "", err //nolint:wrapcheck // already descriptive
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = Object{ContentType: contentType, Data: append([]byte(nil), data...)}
	return fmt.Sprintf("memory://%s", key), nil
}

// Get returns a copy of the object stored under key.
func (s *Sink) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return Object{}, false
	}
	obj.Data = append([]byte(nil), obj.Data...)
	return obj, true
}

// Keys lists stored keys in lexical order.
func (s *Sink) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
