package domain

import (
	"path/filepath"
	"strings"
	"unicode"
)

// Layout constants for per-domain storage.
const (
	// VectorStoreDir is the subdirectory holding the domain vector index.
	VectorStoreDir = "vector_store"

	// DBExt is the domain database file extension.
	DBExt = ".db"

	// IndexExt is the vector index file extension.
	IndexExt = ".idx"
)

// DomainPaths is the deterministic filesystem layout of one domain:
//
//	<base>/<fs_name>/<fs_name>.db
//	<base>/<fs_name>/vector_store/<fs_name>.idx
type DomainPaths struct {
	Dir             string
	DBPath          string
	VectorStorePath string
}

// PathsFor derives the layout for a domain name under base.
func PathsFor(base, name string) DomainPaths {
	fs := FSName(name)
	dir := filepath.Join(base, fs)
	return DomainPaths{
		Dir:             dir,
		DBPath:          filepath.Join(dir, fs+DBExt),
		VectorStorePath: filepath.Join(dir, VectorStoreDir, fs+IndexExt),
	}
}

// FSName converts a domain name into a filesystem-safe directory name.
// Letters are lowercased, anything other than letters, digits, '.', '-'
// and '_' becomes '_', runs of '_' collapse and leading or trailing
// '_' and '.' are trimmed. The result may be empty.
func FSName(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_.")
}

func dirOf(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Dir(path)
}
