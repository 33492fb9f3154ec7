package virtual

import (
	"github.com/buildbarn/bb-storage/pkg/filesystem/path"

	"golang.org/x/text/cases"
)

// NormalizedComponent is the key under which a directory entry is
// stored in its parent directory. Two names collide if they normalize
// to the same key. The original spelling of the name is retained by
// the node itself.
type NormalizedComponent string

// ComponentNormalizer computes the NormalizedComponent of a filename.
type ComponentNormalizer func(path.Component) NormalizedComponent

// CaseSensitiveComponentNormalizer leaves filenames as is, meaning
// that "README" and "readme" may coexist.
func CaseSensitiveComponentNormalizer(c path.Component) NormalizedComponent {
	return NormalizedComponent(c.String())
}

// CaseInsensitiveComponentNormalizer applies Unicode case folding to
// filenames, meaning that "README" and "readme" refer to the same
// directory entry.
func CaseInsensitiveComponentNormalizer(c path.Component) NormalizedComponent {
	return NormalizedComponent(cases.Fold().String(c.String()))
}
