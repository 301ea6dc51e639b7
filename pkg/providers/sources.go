package providers

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/samvad-board-crawler/pkg/httpclient"
)

// SourceBuilder creates a Source from a provider entry.
type SourceBuilder func(Provider) (Source, error)

// sourceRegistry implements SourceRegistry.
type sourceRegistry struct {
	sourcesByID   map[string]Source
	sourcesByType map[string]Source
	mu            sync.RWMutex
}

// NewSourceRegistry builds one Source per provider using the builder for its type.
func NewSourceRegistry(reg *Registry, builders map[string]SourceBuilder) (SourceRegistry, error) {
	if reg == nil {
		return nil, fmt.Errorf("provider registry is nil")
	}
	if builders == nil {
		builders = DefaultBuilders()
	}

	out := &sourceRegistry{
		sourcesByID:   make(map[string]Source),
		sourcesByType: make(map[string]Source),
	}
	for _, p := range reg.All() {
		build, ok := builders[p.Type]
		if !ok {
			return nil, fmt.Errorf("no source builder for provider %q (type %q)", p.ID, p.Type)
		}
		src, err := build(p)
		if err != nil {
			return nil, fmt.Errorf("build source %q: %w", p.ID, err)
		}
		out.registerIDSource(p.ID, src)
		out.registerTypeSource(p.Type, src)
	}
	return out, nil
}

// DefaultBuilders wires up the known provider types.
func DefaultBuilders() map[string]SourceBuilder {
	return map[string]SourceBuilder{
		TypePTT: func(p Provider) (Source, error) { return NewPTTSource(p) },
	}
}

// registerIDSource registers a source by its provider ID.
func (r *sourceRegistry) registerIDSource(id string, s Source) {
	key := strings.ToLower(strings.TrimSpace(id))
	if s == nil || key == "" {
		return
	}

	r.mu.Lock()
	r.sourcesByID[key] = s
	r.mu.Unlock()
}

// registerTypeSource registers the first source seen for a provider type.
func (r *sourceRegistry) registerTypeSource(typ string, s Source) {
	key := strings.ToLower(strings.TrimSpace(typ))
	if s == nil || key == "" {
		return
	}

	r.mu.Lock()
	if _, exists := r.sourcesByType[key]; !exists {
		r.sourcesByType[key] = s
	}
	r.mu.Unlock()
}

// SourceFor selects the source for a request type, matching provider id first, then provider type.
func (r *sourceRegistry) SourceFor(typ string) (Source, error) {
	if r == nil {
		return nil, fmt.Errorf("source registry is nil")
	}
	key := strings.ToLower(strings.TrimSpace(typ))
	if key == "" {
		return nil, fmt.Errorf("request type is empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.sourcesByID[key]; ok {
		return s, nil
	}
	if s, ok := r.sourcesByType[key]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("no source registered for type %q", typ)
}

// DefaultHTTPClient returns the resty-backed client used for forum fetches.
func DefaultHTTPClient(timeout time.Duration) HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return httpclient.NewRestyClient(timeout)
}
