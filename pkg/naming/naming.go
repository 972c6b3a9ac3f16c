// Package naming holds the file naming convention shared by the generator, the
// output replacer and URL pickers. Consumers must be able to derive every output
// name from the image config alone.
package naming

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
)

// WebPExt is the extension of the modern-format sibling of every variant.
const WebPExt = ".webp"

// SizeSuffix puts width and height together: "600" or "300x500".
func SizeSuffix(width, height int) string {
	suffix := strconv.Itoa(width)
	if height > 0 {
		suffix += "x" + strconv.Itoa(height)
	}
	return suffix
}

// Stem returns the basename without its extension
func Stem(basename string) string {
	return strings.TrimSuffix(filepath.Base(basename), filepath.Ext(basename))
}

// Variant returns "<stem>-<suffix><ext>". An empty ext keeps the basename's own.
func Variant(basename string, width, height int, ext string) string {
	if ext == "" {
		ext = filepath.Ext(basename)
	}
	return Stem(basename) + "-" + SizeSuffix(width, height) + ext
}

// WithExt swaps the extension of a file name or path
func WithExt(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}

// PriorOutput compiles the pattern matching every derivative generated from
// basename: "<stem>-*.*".
func PriorOutput(basename string) (glob.Glob, error) {
	return glob.Compile(glob.QuoteMeta(Stem(basename)) + "-*.*")
}
