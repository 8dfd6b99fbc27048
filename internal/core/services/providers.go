package services

import (
	"strings"

	"github.com/codebay/backend/internal/config"
)

// ProviderRegistry maps repository hosts to token-exchange endpoints, built
// once from configuration.
type ProviderRegistry struct {
	byHost map[string]string
}

func NewProviderRegistry(providers []config.TokenProvider) *ProviderRegistry {
	byHost := make(map[string]string, len(providers))
	for _, p := range providers {
		if p.Host == "" || p.AuthURL == "" {
			continue
		}
		byHost[strings.ToLower(p.Host)] = p.AuthURL
	}
	return &ProviderRegistry{byHost: byHost}
}

func (r *ProviderRegistry) AuthURL(host string) (string, bool) {
	url, ok := r.byHost[strings.ToLower(host)]
	return url, ok
}
