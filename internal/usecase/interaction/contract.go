package interaction

import (
	"context"

	dominter "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/interaction"
)

// Ledger is the interaction store. Implementations serialize mutations and report persist
// failures as *domain.PersistError.
type Ledger interface {
	Increment(ctx context.Context, id string) (dominter.Outcome, error)
	Decrement(ctx context.Context, id string) (dominter.Outcome, error)
	AddComment(ctx context.Context, id string, c dominter.Comment) (dominter.Record, error)
	Get(ctx context.Context, id string) (dominter.Record, error)
}
