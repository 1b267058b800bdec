package providers

import "strings"

const (
	ConfigUserAgentKey      = "user_agent"
	ConfigAcceptKey         = "accept"
	ConfigAcceptLanguageKey = "accept_language"
	ConfigCacheControlKey   = "cache_control"

	defaultAccept = "text/html,application/xhtml+xml"
)

// headerKeys maps provider config keys to the request headers they set.
var headerKeys = []struct {
	key, header, fallback string
}{
	{ConfigUserAgentKey, "User-Agent", ""},
	{ConfigAcceptKey, "Accept", defaultAccept},
	{ConfigAcceptLanguageKey, "Accept-Language", ""},
	{ConfigCacheControlKey, "Cache-Control", ""},
}

// ConfigString returns the trimmed value of key in cfg.Config, or fallback when unset or blank.
func ConfigString(cfg Provider, key, fallback string) string {
	if v := strings.TrimSpace(cfg.Config[key]); v != "" {
		return v
	}
	return fallback
}

// Headers builds the profile request headers from cfg, skipping empty values.
func Headers(cfg Provider) map[string]string {
	headers := make(map[string]string, len(headerKeys))
	for _, h := range headerKeys {
		if v := ConfigString(cfg, h.key, h.fallback); v != "" {
			headers[h.header] = v
		}
	}
	return headers
}
