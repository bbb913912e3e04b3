package cli

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matzehuels/pyllemi/pkg/errors"
)

const appName = "pyllemi"

// cacheDir returns the cache directory using XDG standard (~/.cache/pyllemi/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// repoRelative turns the directory arguments into slash-separated paths
// relative to root. Relative arguments are taken from cwd. Every argument
// must be an existing directory inside the repository.
func repoRelative(root, cwd string, args []string) ([]string, error) {
	root = resolveLinks(filepath.Clean(root))
	out := make([]string, 0, len(args))
	for _, arg := range args {
		abs := arg
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(cwd, arg)
		}
		abs = filepath.Clean(abs)

		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			return nil, errors.New(errors.ErrCodeInvalidPath, "%s is not a directory", arg)
		}

		rel, err := filepath.Rel(root, resolveLinks(abs))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, errors.New(errors.ErrCodeInvalidPath, "%s not within Plz repo", arg)
		}
		if rel == "." {
			rel = ""
		}
		rel = filepath.ToSlash(rel)
		if !slices.Contains(out, rel) {
			out = append(out, rel)
		}
	}
	return out, nil
}

func resolveLinks(p string) string {
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	return p
}
