package model

// Profile is a firmographic record as returned by the company-data API:
// a nested mapping (geo, category, metrics, social handles).
type Profile map[string]any

// Map returns the nested mapping stored under key, or nil when the value
// is absent or not a mapping.
func (p Profile) Map(key string) map[string]any {
	return AsMap(p[key])
}

// AsMap normalises the two mapping shapes that decoders produce.
func AsMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case Profile:
		return m
	}
	return nil
}

// Clone returns a deep copy of the profile so callers cannot mutate
// shared lookup tables.
func (p Profile) Clone() Profile {
	if p == nil {
		return nil
	}
	return Profile(cloneMap(p))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Profile:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

// Extraction is the structured output of the feature extractor.
type Extraction struct {
	KeyAIFeatures   []string `json:"key_ai_features"`
	NotableUseCases []string `json:"notable_use_cases"`
}

// SearchResult is a single organic web search hit.
type SearchResult struct {
	Link    string `json:"link"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}
