package access

import "strings"

// AllContexts is the reserved context list entry that enables authentication everywhere
const AllContexts = "cfaccess_all_contexts"

// ParseContexts splits a comma-separated context list, trimming entries and
// dropping empties and duplicates. Order of first occurrence is kept.
func ParseContexts(raw string) []string {
	parts := strings.Split(raw, ",")
	seen := make(map[string]struct{}, len(parts))
	contexts := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		contexts = append(contexts, p)
	}
	return contexts
}

// ShouldAuthenticate decides whether requests in contextKey must be authenticated.
// It does not authenticate anything itself.
func ShouldAuthenticate(contextKey string, contexts []string) bool {
	for _, c := range contexts {
		if c == AllContexts || c == contextKey {
			return true
		}
	}
	return false
}
