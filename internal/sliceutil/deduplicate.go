// Package sliceutil provides generic slice helpers.
package sliceutil

// DistinctKeys returns the key of every item, keeping only the first
// occurrence of each and preserving order.
//
// Example:
//
//	entries := []storage.ShortlistEntry{{CollegeCode: "ENG01"}, {CollegeCode: "ENG02"}, {CollegeCode: "ENG01"}}
//	codes := sliceutil.DistinctKeys(entries, func(e storage.ShortlistEntry) string { return e.CollegeCode })
//	// Result: ["ENG01", "ENG02"]
func DistinctKeys[T any, K comparable](items []T, key func(T) K) []K {
	seen := make(map[K]struct{}, len(items))
	keys := make([]K, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}
