package provider

import (
	"inferd/internal/crypto"
)

// cfgString returns specs.Config[key] as a string, or def when absent or
// not a string.
func cfgString(cfg map[string]any, key, def string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return def
}

// cfgSecret reads a config value and decrypts it. Decryption falls back to
// the stored value for legacy plaintext configs.
func cfgSecret(cfg map[string]any, key string) string {
	v := cfgString(cfg, key, "")
	if v == "" {
		return ""
	}
	return crypto.Decrypt(v)
}

// cfgHeaders extracts optional extra HTTP headers from specs.Config.
// Non-string values are ignored.
func cfgHeaders(cfg map[string]any) map[string]string {
	raw, ok := cfg["headers"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
