package slugfill

import (
	"io"

	domcol "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/collection"
)

// Catalog resolves configured collections.
type Catalog interface {
	Get(name string) (domcol.Collection, bool)
	All() []domcol.Collection
}

// WriteFunc replaces the file at path with the contents of r.
type WriteFunc func(path string, r io.Reader) error
