package config

// Merge deep-merges overlay into base and returns base. Nested maps are merged
// key by key; any other overlay value (including lists) replaces the base value.
func Merge(base, overlay map[string]any) map[string]any {
	if base == nil {
		base = make(map[string]any, len(overlay))
	}
	for k, v := range overlay {
		src, srcIsMap := v.(map[string]any)
		dst, dstIsMap := base[k].(map[string]any)
		if srcIsMap && dstIsMap {
			base[k] = Merge(dst, src)
			continue
		}
		base[k] = clone(v)
	}
	return base
}

func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = clone(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = clone(vv)
		}
		return out
	default:
		return v
	}
}
