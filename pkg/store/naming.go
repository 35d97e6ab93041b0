package store

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// DefaultExtension is used when the original name carries no usable extension.
	DefaultExtension = ".bin"

	// Keeps id + extension within the 255 byte name limit of common filesystems.
	maxExtensionLen = 200
)

// NewID returns a fresh random (version 4) UUID in its textual form.
func NewID() string {
	return uuid.NewString()
}

// Extension returns the extension of the client supplied name including the
// leading dot, e.g. ".gz" for "a.tar.gz". Only the last path element is
// considered. Names without an extension, dotfiles and extensions holding
// control characters yield DefaultExtension.
func Extension(originalName string) string {
	base := originalName[strings.LastIndexAny(originalName, `/\`)+1:]
	ext := filepath.Ext(strings.TrimLeft(base, "."))
	if len(ext) < 2 || len(ext) > maxExtensionLen {
		return DefaultExtension
	}

	if strings.ContainsFunc(ext, unicode.IsControl) || !utf8.ValidString(ext) {
		return DefaultExtension
	}
	return ext
}

// StoredName is the only mapping from a file id to its name on disk.
func StoredName(id, ext string) string {
	return id + ext
}
