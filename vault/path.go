// Package vault implements the Cryptomator v8 vault object model: the
// mapping between user-facing paths and the encrypted on-disk layout, and
// the read/write/list/rename operations that respect its invariants.
package vault

import (
	"strings"
)

// DirID is a vault directory's opaque identifier: the empty string for the
// vault root, or a UUID string read from (or written to) a dir.c9r file
// otherwise. DirIDs never change for the lifetime of a directory, including
// across renames.
type DirID string

// RootDirID is the canonical directory ID of the vault root.
const RootDirID DirID = ""

// IsRoot reports whether id identifies the vault root.
func (id DirID) IsRoot() bool { return id == RootDirID }

func (id DirID) String() string {
	if id.IsRoot() {
		return "<root>"
	}
	return string(id)
}

// Path is a user-facing path inside a vault, always "/"-separated
// regardless of host OS and normalized to have no leading or trailing
// slash.
type Path struct {
	clean string
}

// RootPath is the vault root path.
func RootPath() Path { return Path{} }

// NewPath normalizes raw (stripping leading/trailing slashes and collapsing
// "." components) into a Path.
func NewPath(raw string) Path {
	raw = strings.Trim(raw, "/")
	if raw == "" || raw == "." {
		return Path{}
	}
	parts := splitClean(raw)
	return Path{clean: strings.Join(parts, "/")}
}

func splitClean(raw string) []string {
	segments := strings.Split(raw, "/")
	out := segments[:0]
	for _, s := range segments {
		if s == "" || s == "." {
			continue
		}
		out = append(out, s)
	}
	return out
}

// IsRoot reports whether p is the vault root.
func (p Path) IsRoot() bool { return p.clean == "" }

// String returns the normalized, "/"-separated path without a leading
// slash, e.g. "Documents/report.txt". The root path is the empty string.
func (p Path) String() string { return p.clean }

// Display renders p the way a user would write it, with a leading slash.
func (p Path) Display() string {
	if p.IsRoot() {
		return "/"
	}
	return "/" + p.clean
}

// Join appends component as a new final path segment.
func (p Path) Join(component string) Path {
	if p.IsRoot() {
		return NewPath(component)
	}
	return NewPath(p.clean + "/" + component)
}

// Components returns the path's segments in order. The root path has no
// components.
func (p Path) Components() []string {
	if p.IsRoot() {
		return nil
	}
	return strings.Split(p.clean, "/")
}

// Parent returns p's parent path and whether p has one (false for the
// root).
func (p Path) Parent() (Path, bool) {
	parts := p.Components()
	if len(parts) == 0 {
		return Path{}, false
	}
	return Path{clean: strings.Join(parts[:len(parts)-1], "/")}, true
}

// FileName returns p's final component and whether p has one (false for
// the root).
func (p Path) FileName() (string, bool) {
	parts := p.Components()
	if len(parts) == 0 {
		return "", false
	}
	return parts[len(parts)-1], true
}

// Split returns p's parent path and final component together. ok is false
// for the root path.
func (p Path) Split() (parent Path, name string, ok bool) {
	parent, ok = p.Parent()
	if !ok {
		return Path{}, "", false
	}
	name, _ = p.FileName()
	return parent, name, true
}
