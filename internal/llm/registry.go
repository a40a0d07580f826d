package llm

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/soyeahso/concierge/internal/config"
	"github.com/soyeahso/concierge/internal/logging"
)

// Provider names accepted in configuration.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderNone   = "none"
)

// ProviderError is returned when a text-generation provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status code (401, 429, 500, etc.)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Registry manages provider clients and resolves references to clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // reference → client
	aliases  map[string]string // alias → reference
	fallback string            // default reference
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given reference.
func (r *Registry) Register(ref string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[ref] = client
	r.log.Info().Str("provider", client.Name()).Str("ref", ref).Msg("registered text-generation provider")
}

// Alias maps an alternative name to a registered reference.
func (r *Registry) Alias(alias, ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = ref
}

// SetFallback sets the reference used when nothing else matches.
func (r *Registry) SetFallback(ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = ref
}

// Resolve returns the Client for the given reference.
// Resolution order: exact reference → alias → fallback.
func (r *Registry) Resolve(ref string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.clients[ref]; ok {
		return c, nil
	}

	if target, ok := r.aliases[ref]; ok {
		if c, ok := r.clients[target]; ok {
			return c, nil
		}
	}

	if r.fallback != "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, nil
		}
	}

	return nil, fmt.Errorf("no text-generation provider for %q", ref)
}

// List returns all registered references, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	refs := make([]string, 0, len(r.clients))
	for ref := range r.clients {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// Ref is the registry key for a provider/model pair, e.g. "openai/gpt-4o-mini".
func Ref(provider, model string) string {
	return strings.ToLower(provider) + "/" + model
}

// NewRegistryFromConfig registers the primary provider and every fallback.
// It returns the registry and the references in the order they should be
// tried. Provider "none" (or an empty model) registers nothing.
func NewRegistryFromConfig(cfg config.LLMConfig, log *logging.Logger) (*Registry, []string) {
	reg := NewRegistry(log)

	entries := []config.LLMFallback{{
		Provider: cfg.Provider,
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
	}}
	if strings.ToLower(cfg.Provider) != ProviderNone {
		entries = append(entries, cfg.Fallbacks...)
	}

	var order []string
	for _, e := range entries {
		client := newProvider(e)
		if client == nil {
			continue
		}
		ref := Ref(e.Provider, e.Model)
		if _, dup := reg.clients[ref]; dup {
			continue
		}
		reg.Register(ref, client)
		order = append(order, ref)
	}

	if len(order) > 0 {
		reg.SetFallback(order[0])
		reg.Alias(strings.ToLower(cfg.Provider), order[0])
	}
	return reg, order
}

func newProvider(e config.LLMFallback) Client {
	if e.Model == "" {
		return nil
	}
	switch strings.ToLower(e.Provider) {
	case ProviderOpenAI:
		return NewOpenAIClient(e.BaseURL, e.APIKey, e.Model)
	case ProviderOllama:
		return NewOllamaClient(e.BaseURL, e.Model)
	default:
		return nil
	}
}
