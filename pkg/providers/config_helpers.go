package providers

import (
	"fmt"
	"sort"
	"strings"
)

// ConfigString returns the trimmed string value for key from provider.Config or a fallback.
func ConfigString(cfg Provider, key, fallback string) string {
	if cfg.Config != nil {
		if raw, ok := cfg.Config[key]; ok {
			if val, ok := raw.(string); ok {
				if trimmed := strings.TrimSpace(val); trimmed != "" {
					return trimmed
				}
			}
		}
	}
	return fallback
}

// ConfigStringMap returns a string map stored under key; non-string values are formatted.
func ConfigStringMap(cfg Provider, key string) map[string]string {
	if cfg.Config == nil {
		return nil
	}
	out := map[string]string{}
	switch raw := cfg.Config[key].(type) {
	case map[string]any:
		for k, v := range raw {
			out[k] = strings.TrimSpace(fmt.Sprint(v))
		}
	case map[string]string:
		for k, v := range raw {
			out[k] = strings.TrimSpace(v)
		}
	default:
		return nil
	}
	return out
}

const (
	ConfigUserAgentKey      = "user_agent"
	ConfigAcceptKey         = "accept"
	ConfigAcceptLanguageKey = "accept_language"
	ConfigCacheControlKey   = "cache_control"
	ConfigCookiesKey        = "cookies"
)

// Headers builds the common request headers from a provider config (skips empty values).
func Headers(cfg Provider) map[string]string {
	headers := make(map[string]string, 5)

	if v := ConfigString(cfg, ConfigUserAgentKey, ""); v != "" {
		headers["User-Agent"] = v
	}
	if v := ConfigString(cfg, ConfigAcceptKey, ""); v != "" {
		headers["Accept"] = v
	}
	if v := ConfigString(cfg, ConfigAcceptLanguageKey, ""); v != "" {
		headers["Accept-Language"] = v
	}
	if v := ConfigString(cfg, ConfigCacheControlKey, ""); v != "" {
		headers["Cache-Control"] = v
	}
	if v := cookieHeader(ConfigStringMap(cfg, ConfigCookiesKey)); v != "" {
		headers["Cookie"] = v
	}

	return headers
}

// cookieHeader renders cookies in a stable order.
func cookieHeader(cookies map[string]string) string {
	if len(cookies) == 0 {
		return ""
	}
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		if strings.TrimSpace(name) != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, strings.TrimSpace(name)+"="+cookies[name])
	}
	return strings.Join(parts, "; ")
}
