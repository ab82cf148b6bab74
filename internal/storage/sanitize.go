package storage

import "strings"

var likeEscaper = strings.NewReplacer(
	"\\", "\\\\", // backslash first
	"%", "\\%",
	"_", "\\_",
)

// sanitizeSearchTerm escapes SQLite LIKE wildcards so user input matches literally.
// Queries using it must declare ESCAPE '\'.
func sanitizeSearchTerm(term string) string {
	return likeEscaper.Replace(term)
}
