package sanitizer

import "strings"

func NormalizeStringSlice(items []string, normalizer func(string) string) []string {
	if len(items) == 0 {
		return []string{}
	}

	seen := make(map[string]bool)
	result := make([]string, 0, len(items))

	for _, item := range items {
		normalized := normalizer(item)

		if normalized == "" {
			continue
		}

		if seen[normalized] {
			continue
		}

		seen[normalized] = true
		result = append(result, normalized)
	}

	return result
}

// NormalizeIDs trims and de-duplicates ids, dropping any listed in exclude.
// Order of first appearance is kept.
func NormalizeIDs(ids []string, exclude ...string) []string {
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[strings.ToLower(strings.TrimSpace(id))] = true
	}

	return NormalizeStringSlice(ids, func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		if skip[s] {
			return ""
		}
		return s
	})
}
