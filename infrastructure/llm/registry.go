package llm

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fintora/counsel/internal/ports"
)

// Registry manages chat clients across multiple providers. Clients are keyed
// by "provider/model" references, created lazily on first use, and cached for
// the life of the registry.
type Registry struct {
	// providers maps provider names to their configuration.
	providers map[string]ProviderConfig
	// clients caches constructed clients by "provider/model" reference.
	clients map[string]ports.ChatClient
	// defaultMiddleware is applied to every client unless a provider
	// overrides it.
	defaultMiddleware []Middleware
	mu                sync.RWMutex
}

var _ ports.ClientRegistry = (*Registry)(nil)

// ProviderConfig holds per-provider settings used when the registry
// constructs a client for that provider.
type ProviderConfig struct {
	// Type selects the provider implementation (anthropic, openai, google).
	Type string
	// APIKey authenticates requests. When empty, EnvVar is consulted.
	APIKey string
	// EnvVar names the environment variable holding the API key, used only
	// when APIKey is empty.
	EnvVar string
	// DefaultModel fills in references that omit the model.
	DefaultModel string
	// BaseURL overrides the provider's default endpoint.
	BaseURL string
	// Middleware is provider-specific middleware, applied inside the
	// registry defaults.
	Middleware []Middleware
}

// DefaultProviders lists the built-in provider configurations with their
// conventional API-key environment variables.
var DefaultProviders = map[string]ProviderConfig{
	"anthropic": {
		Type:         "anthropic",
		EnvVar:       "ANTHROPIC_API_KEY",
		DefaultModel: AnthropicDefaultModel,
	},
	"openai": {
		Type:         "openai",
		EnvVar:       "OPENAI_API_KEY",
		DefaultModel: OpenAIDefaultModel,
	},
	"google": {
		Type:         "google",
		EnvVar:       "GOOGLE_API_KEY",
		DefaultModel: GoogleDefaultModel,
	},
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// Providers defines the available providers. Nil falls back to
	// DefaultProviders.
	Providers map[string]ProviderConfig
	// DefaultMiddleware is applied to every constructed client, outermost
	// first.
	DefaultMiddleware []Middleware
}

// NewRegistry builds a registry from the given configuration.
func NewRegistry(config RegistryConfig) *Registry {
	providers := config.Providers
	if providers == nil {
		providers = DefaultProviders
	}
	return &Registry{
		providers:         providers,
		clients:           make(map[string]ports.ChatClient),
		defaultMiddleware: config.DefaultMiddleware,
	}
}

// GetClient returns a chat client for a "provider/model" reference. A bare
// provider name selects the provider's default model. Clients are created on
// first request and reused afterwards.
func (r *Registry) GetClient(ref string) (ports.ChatClient, error) {
	if ref == "" {
		return nil, fmt.Errorf("client reference cannot be empty")
	}

	provider, model := r.parseRef(ref)
	key := provider + "/" + model

	r.mu.RLock()
	if client, ok := r.clients[key]; ok {
		r.mu.RUnlock()
		return client, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[key]; ok {
		return client, nil
	}

	client, err := r.createClient(provider, model)
	if err != nil {
		return nil, err
	}

	r.clients[key] = client
	return client, nil
}

// RegisterClient installs a pre-built client under a "provider/model"
// reference, bypassing lazy construction. Intended for tests and custom
// providers.
func (r *Registry) RegisterClient(ref string, client ports.ChatClient) error {
	if ref == "" {
		return fmt.Errorf("client reference cannot be empty")
	}

	provider, model := r.parseRef(ref)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[provider+"/"+model] = client
	return nil
}

func (r *Registry) parseRef(ref string) (provider, model string) {
	parts := strings.SplitN(ref, "/", 2)
	provider = parts[0]

	if len(parts) > 1 {
		model = parts[1]
	} else if providerConfig, ok := r.providers[provider]; ok {
		model = providerConfig.DefaultModel
	}

	return
}

func (r *Registry) createClient(provider, model string) (ports.ChatClient, error) {
	providerConfig, ok := r.providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}

	apiKey := providerConfig.APIKey
	if apiKey == "" && providerConfig.EnvVar != "" {
		apiKey = os.Getenv(providerConfig.EnvVar)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %q (set %s)",
			provider, providerConfig.EnvVar)
	}

	config := ClientConfig{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: providerConfig.BaseURL,
	}

	config.Middleware = append([]Middleware{}, r.defaultMiddleware...)
	config.Middleware = append(config.Middleware, providerConfig.Middleware...)

	return NewClient(providerConfig.Type, config)
}

// RegisteredRefs returns the references of all cached clients, useful for
// startup logging and debugging.
func (r *Registry) RegisteredRefs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refs := make([]string, 0, len(r.clients))
	for ref := range r.clients {
		refs = append(refs, ref)
	}
	return refs
}
