package sitemap

import (
	"context"

	domcol "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/collection"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/document"
)

// DocumentSource loads collection snapshots. Load never fails.
type DocumentSource interface {
	Load(ctx context.Context, name string) []document.Document
}

// Catalog lists the configured collections in traversal order.
type Catalog interface {
	All() []domcol.Collection
}
