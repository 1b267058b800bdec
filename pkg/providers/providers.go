package providers

import (
	"fmt"
	"strings"
)

// Package providers contains source platform configs and post extraction strategies.

const (
	ProviderTypeInstagram = "instagram"

	defaultInstagramProfileURL = "https://www.instagram.com/%s/"
)

// Provider describes how to reach a source platform.
type Provider struct {
	ID         string            `json:"id" yaml:"id"`
	Type       string            `json:"type" yaml:"type"`
	ProfileURL string            `json:"profile_url" yaml:"profile_url"`
	ProxyURL   string            `json:"proxy_url" yaml:"proxy_url"`
	Config     map[string]string `json:"config" yaml:"config"`
}

// InstagramProvider returns the Instagram provider with optional proxy and header overrides.
func InstagramProvider(proxyURL string, config map[string]string) Provider {
	return Provider{
		ID:         ProviderTypeInstagram,
		Type:       ProviderTypeInstagram,
		ProfileURL: defaultInstagramProfileURL,
		ProxyURL:   strings.TrimSpace(proxyURL),
		Config:     config,
	}
}

// profileURL renders the profile page address for account.
func (p Provider) profileURL(account string) string {
	tmpl := strings.TrimSpace(p.ProfileURL)
	if tmpl == "" {
		tmpl = defaultInstagramProfileURL
	}
	if !strings.Contains(tmpl, "%s") {
		return strings.TrimRight(tmpl, "/") + "/" + account + "/"
	}
	return fmt.Sprintf(tmpl, account)
}
