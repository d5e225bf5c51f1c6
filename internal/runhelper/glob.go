package runhelper

import "path/filepath"

// Glob is the file-include/exclude filter the Run Helper applies when
// deciding whether a change is relevant. Patterns are shell globs as
// path/filepath.Match understands them; the transformation pipeline
// that would otherwise own a richer pattern language is an external
// collaborator, so this stays intentionally small.
type Glob struct {
	Includes []string
	Excludes []string
}

// AllFiles is the default Glob: every path matches.
func AllFiles() Glob {
	return Glob{}
}

// Matches reports whether path is selected by the glob: not excluded,
// and either there are no includes (meaning "everything") or it matches
// at least one include pattern.
func (g Glob) Matches(path string) bool {
	for _, pat := range g.Excludes {
		if ok, _ := filepath.Match(pat, path); ok {
			return false
		}
	}
	if len(g.Includes) == 0 {
		return true
	}
	for _, pat := range g.Includes {
		if ok, _ := filepath.Match(pat, path); ok {
			return true
		}
	}
	return false
}

// TouchesAny reports whether at least one of files is selected by g.
func (g Glob) TouchesAny(files []string) bool {
	for _, f := range files {
		if g.Matches(f) {
			return true
		}
	}
	return false
}
