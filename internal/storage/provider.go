// Package storage holds helpers shared by the artifact sinks. Each backend
// lives in its own subpackage and implements logo.ContentSink.
package storage

import (
	"fmt"
	"path"
	"strings"
)

// ObjectKey joins an optional prefix and an artifact name into a slash
// separated key. Names must be plain file names.
func ObjectKey(prefix, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("artifact name is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("artifact name %q must not contain path separators", name)
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name, nil
	}
	return path.Join(prefix, name), nil
}
