package config

// Safe type assertion helpers prevent panics when accessing dynamic
// configuration, such as the free-form params block of a manifest stage.

// lookup returns cfg[key] asserted to T.
func lookup[T any](cfg map[string]any, key string) (T, bool) {
	var zero T
	val, ok := cfg[key]
	if !ok {
		return zero, false
	}
	typed, ok := val.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// toFloat64 widens any numeric config value. YAML and JSON decoders hand
// numbers over as different concrete types depending on the source.
func toFloat64(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	}
	return 0, false
}

// GetString safely extracts a string value from a config map
func GetString(cfg map[string]any, key string, defaultVal string) string {
	if s, ok := lookup[string](cfg, key); ok {
		return s
	}
	return defaultVal
}

// GetInt safely extracts an integer value from a config map
func GetInt(cfg map[string]any, key string, defaultVal int) int {
	if val, ok := cfg[key]; ok {
		if f, ok := toFloat64(val); ok {
			return int(f)
		}
	}
	return defaultVal
}

// GetFloat64 safely extracts a float64 value from a config map
func GetFloat64(cfg map[string]any, key string, defaultVal float64) float64 {
	if val, ok := cfg[key]; ok {
		if f, ok := toFloat64(val); ok {
			return f
		}
	}
	return defaultVal
}

// GetBool safely extracts a boolean value from a config map
func GetBool(cfg map[string]any, key string, defaultVal bool) bool {
	if b, ok := lookup[bool](cfg, key); ok {
		return b
	}
	return defaultVal
}

// GetStringSlice safely extracts a string slice from a config map. A
// []any value converts when every element is a string, which is how JSON
// and YAML decoders deliver lists.
func GetStringSlice(cfg map[string]any, key string, defaultVal []string) []string {
	if slice, ok := lookup[[]string](cfg, key); ok {
		return slice
	}

	raw, ok := lookup[[]any](cfg, key)
	if !ok {
		return defaultVal
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		str, ok := item.(string)
		if !ok {
			return defaultVal
		}
		result = append(result, str)
	}
	return result
}

// descend walks all but the last key through nested maps, returning the
// innermost map and the final key.
func descend(cfg map[string]any, keys []string) (map[string]any, string, bool) {
	if len(keys) == 0 {
		return nil, "", false
	}

	current := cfg
	for _, key := range keys[:len(keys)-1] {
		nested, ok := current[key].(map[string]any)
		if !ok {
			return nil, "", false
		}
		current = nested
	}
	return current, keys[len(keys)-1], true
}

// GetNestedString safely extracts a nested string value from a config map
func GetNestedString(cfg map[string]any, keys []string, defaultVal string) string {
	inner, key, ok := descend(cfg, keys)
	if !ok {
		return defaultVal
	}
	return GetString(inner, key, defaultVal)
}

// GetNestedFloat64 safely extracts a nested float64 value from a config map
func GetNestedFloat64(cfg map[string]any, keys []string, defaultVal float64) float64 {
	inner, key, ok := descend(cfg, keys)
	if !ok {
		return defaultVal
	}
	return GetFloat64(inner, key, defaultVal)
}

// HasKey checks if a key exists in the config map
func HasKey(cfg map[string]any, key string) bool {
	_, ok := cfg[key]
	return ok
}

// HasNestedKey checks if a nested key path exists in the config map
func HasNestedKey(cfg map[string]any, keys []string) bool {
	inner, key, ok := descend(cfg, keys)
	return ok && HasKey(inner, key)
}
