package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Package providers contains pluggable forum provider configs (YAML/JSON) and
// the HTML sources that understand each forum's page shapes.

// Provider describes one forum site the crawler can serve.
type Provider struct {
	ID      string         `json:"id" yaml:"id"`
	Name    string         `json:"name" yaml:"name"`
	Type    string         `json:"type" yaml:"type"`
	BaseURL string         `json:"base_url" yaml:"base_url"`
	Config  map[string]any `json:"config" yaml:"config"`
}

const (
	// TypePTT is the provider type for PTT-shaped boards (paginated index + article pages).
	TypePTT = "ptt"

	defaultPTTBaseURL = "https://www.ptt.cc"
)

type registryFile struct {
	Providers []Provider `json:"providers" yaml:"providers"`
}

// Registry holds the loaded providers keyed by id.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
	idx       map[string]Provider
}

// DefaultProviders returns the built-in provider list used when no file is configured.
func DefaultProviders() []Provider {
	return []Provider{
		{
			ID:      "ptt",
			Name:    "PTT",
			Type:    TypePTT,
			BaseURL: defaultPTTBaseURL,
			Config: map[string]any{
				ConfigCookiesKey:   map[string]any{"over18": "1"},
				ConfigUserAgentKey: "samvad-board-crawler/1.0",
			},
		},
	}
}

// NewRegistry validates the given providers and indexes them by id.
func NewRegistry(list []Provider) (*Registry, error) {
	if len(list) == 0 {
		return nil, errors.New("no providers supplied")
	}

	reg := &Registry{
		providers: make([]Provider, len(list)),
		idx:       make(map[string]Provider, len(list)),
	}
	for i := range list {
		p := sanitizeProvider(list[i])
		if err := validateProvider(p); err != nil {
			return nil, fmt.Errorf("provider[%d]: %w", i, err)
		}
		key := strings.ToLower(p.ID)
		if _, exists := reg.idx[key]; exists {
			return nil, fmt.Errorf("duplicate provider id %q", p.ID)
		}
		reg.providers[i] = p
		reg.idx[key] = p
	}
	return reg, nil
}

// LoadRegistry loads the provider registry from file, or the built-in
// defaults when path is empty.
func LoadRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return NewRegistry(DefaultProviders())
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open providers file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read providers file: %w", err)
	}

	parsed, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(parsed.Providers) == 0 {
		return nil, errors.New("providers file contains no providers entries")
	}
	return NewRegistry(parsed.Providers)
}

// All returns a copy of the loaded providers.
func (r *Registry) All() []Provider {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// ByID returns the provider entry for the given id (case-insensitive).
func (r *Registry) ByID(id string) (Provider, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	if r == nil || id == "" {
		return Provider{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.idx[id]
	return p, ok
}

func parseRegistry(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		if reg, err := unmarshalRegistry(d.name, data, d.fn); err == nil {
			return reg, nil
		}
	}

	return registryFile{}, errors.New("providers file format not recognized (expected YAML or JSON)")
}

type unmarshalFn func([]byte, any) error

func unmarshalRegistry(name string, data []byte, fn unmarshalFn) (registryFile, error) {
	var reg registryFile
	if err := fn(data, &reg); err != nil {
		return registryFile{}, fmt.Errorf("decode %s providers: %w", name, err)
	}
	return reg, nil
}

func sanitizeProvider(p Provider) Provider {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	p.Type = strings.ToLower(strings.TrimSpace(p.Type))
	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")

	if p.Config == nil {
		p.Config = map[string]any{}
	}
	return p
}

func validateProvider(p Provider) error {
	if p.ID == "" {
		return errors.New("id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required for provider %q", p.ID)
	}
	if p.Type == "" {
		return fmt.Errorf("type is required for provider %q", p.ID)
	}
	if p.BaseURL == "" {
		return fmt.Errorf("base_url is required for provider %q", p.ID)
	}
	return nil
}
