package content

import (
	"context"

	domcol "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/collection"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/document"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/interaction"
)

// DocumentSource loads collection snapshots. Load never fails; problems yield an empty slice.
type DocumentSource interface {
	Load(ctx context.Context, name string) []document.Document
}

// InteractionReader reads live like counts and comments.
type InteractionReader interface {
	Get(ctx context.Context, id string) (interaction.Record, error)
	Summaries(ctx context.Context) (map[string]interaction.Summary, error)
}

// Catalog resolves configured collections.
type Catalog interface {
	Get(name string) (domcol.Collection, bool)
	All() []domcol.Collection
}
