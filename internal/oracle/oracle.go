// Package oracle decides whether a target is already present on disk so a
// re-run can skip it.
//
// The default check is lenient: any non-empty file counts, which means a
// partial file left by an interrupted transfer is treated as done. Strict
// mode additionally requires the completion marker written after a
// successful transfer.
package oracle

import (
	"github.com/sinsfetch/sinsfetch/internal/catalog"
	"github.com/spf13/afero"
)

// MarkerSuffix is appended to a destination path to form its completion
// marker.
const MarkerSuffix = ".complete"

// Oracle answers Satisfied for catalog targets.
type Oracle struct {
	fs     afero.Fs
	strict bool
}

// New returns an oracle over fs. With strict set, a target also needs its
// completion marker.
func New(fs afero.Fs, strict bool) *Oracle {
	return &Oracle{fs: fs, strict: strict}
}

// Satisfied reports whether t exists with a size greater than zero (and,
// in strict mode, carries a marker).
func (o *Oracle) Satisfied(t catalog.Target) bool {
	info, err := o.fs.Stat(t.Path)
	if err != nil || !info.Mode().IsRegular() || info.Size() <= 0 {
		return false
	}
	if !o.strict {
		return true
	}
	ok, err := afero.Exists(o.fs, MarkerPath(t.Path))
	return err == nil && ok
}

// Strict reports whether markers are required.
func (o *Oracle) Strict() bool {
	return o.strict
}

// MarkerPath returns the completion marker path for dest.
func MarkerPath(dest string) string {
	return dest + MarkerSuffix
}

// Mark writes the completion marker for dest.
func Mark(fs afero.Fs, dest string) error {
	return afero.WriteFile(fs, MarkerPath(dest), nil, 0o644)
}
