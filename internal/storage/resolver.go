package storage

import (
	"os"
	"path/filepath"
	"strings"
)

// Resolver confines user-supplied relative paths to a storage root.
// Every component that touches the filesystem on behalf of a request
// routes its path fragments through Resolve first.
type Resolver struct {
	root string
}

// NewResolver creates a resolver for the given root, creating the root
// directory if it does not exist. The stored root is canonical so that
// later containment checks are not fooled by symlinked roots.
func NewResolver(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, NewErrorWithCause("ResolveRoot", "Failed to resolve storage root", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, NewErrorWithCause("CreateRootDir", "Failed to create storage root", err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, NewErrorWithCause("ResolveRoot", "Failed to canonicalize storage root", err)
	}
	return &Resolver{root: canonical}, nil
}

// Root returns the canonical storage root.
func (r *Resolver) Root() string { return r.root }

// Resolve joins relative onto the root and fails with ErrPathEscape if
// the canonical result is not the root itself or nested under it.
// Absolute inputs are rejected outright.
func (r *Resolver) Resolve(relative string) (string, error) {
	relative = filepath.FromSlash(relative)
	if filepath.IsAbs(relative) {
		return "", ErrPathEscape
	}

	joined := filepath.Join(r.root, relative)
	cleaned := filepath.Clean(joined)
	if !r.contains(cleaned) {
		return "", ErrPathEscape
	}

	// Clean catches lexical ../ escapes; symlinks inside the tree can
	// still point outside. Canonicalize the deepest existing ancestor
	// and re-check containment.
	canonical, err := canonicalizeExisting(cleaned)
	if err != nil {
		return "", NewErrorWithCause("Canonicalize", "Failed to canonicalize path", err)
	}
	if !r.contains(canonical) {
		return "", ErrPathEscape
	}

	return cleaned, nil
}

func (r *Resolver) contains(path string) bool {
	if path == r.root {
		return true
	}
	return strings.HasPrefix(path, r.root+string(filepath.Separator))
}

// canonicalizeExisting resolves symlinks on the longest existing prefix
// of path, re-appending the non-existent remainder untouched.
func canonicalizeExisting(path string) (string, error) {
	current := path
	var suffix []string
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(suffix) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, suffix[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			return path, nil
		}
		suffix = append(suffix, filepath.Base(current))
		current = parent
	}
}
