package audit

import "strings"

// Policy decides which request paths are audited.
type Policy struct {
	// Prefix marks the administrative area, e.g. "/opanel".
	Prefix   string
	Backend  bool
	Frontend bool
}

// Allows reports whether requests to path should be recorded.
func (p Policy) Allows(path string) bool {
	if IsBackendPath(p.Prefix, path) {
		return p.Backend
	}
	return p.Frontend
}

// IsBackendPath reports whether path lies inside the administrative prefix.
func IsBackendPath(prefix, path string) bool {
	if prefix == "" {
		return false
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
