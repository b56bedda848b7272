package interaction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	dominter "github.com/JohannesMeyerYC/QuantFinanceWiki/internal/domain/interaction"
	"github.com/JohannesMeyerYC/QuantFinanceWiki/internal/validation"
)

// CommentRequest is the body of a new comment.
type CommentRequest struct {
	Name string `json:"name" validate:"max=100"`
	Text string `json:"text" validate:"required,max=5000"`
}

// Service applies likes, unlikes and comments to items.
type Service struct {
	ledger Ledger
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// New creates an interaction service.
func New(ledger Ledger, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		ledger: ledger,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// WithClock overrides the comment clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Like adds one like. On persist failure the outcome carries the last durable count and the
// error is a *domain.PersistError.
func (s *Service) Like(ctx context.Context, id string) (dominter.Outcome, error) {
	if err := dominter.ValidateItemID(id); err != nil {
		return dominter.Outcome{}, err
	}
	out, err := s.ledger.Increment(ctx, id)
	if err != nil {
		return out, fmt.Errorf("like %s: %w", id, err)
	}
	return out, nil
}

// Unlike removes one like. Unliking an item at zero is a no-op that still succeeds.
func (s *Service) Unlike(ctx context.Context, id string) (dominter.Outcome, error) {
	if err := dominter.ValidateItemID(id); err != nil {
		return dominter.Outcome{}, err
	}
	out, err := s.ledger.Decrement(ctx, id)
	if err != nil {
		return out, fmt.Errorf("unlike %s: %w", id, err)
	}
	if !out.Changed {
		s.logger.Debug("Unlike at zero ignored", zap.String("item_id", id))
	}
	return out, nil
}

// Comment validates and appends a comment, returning the stored comment.
func (s *Service) Comment(ctx context.Context, id string, req CommentRequest) (dominter.Comment, error) {
	if err := dominter.ValidateItemID(id); err != nil {
		return dominter.Comment{}, err
	}
	if err := validation.Struct(req); err != nil {
		return dominter.Comment{}, err
	}
	c, err := dominter.NewComment(s.newID(), req.Name, req.Text, s.now())
	if err != nil {
		return dominter.Comment{}, err
	}
	if _, err := s.ledger.AddComment(ctx, id, c); err != nil {
		return dominter.Comment{}, fmt.Errorf("comment %s: %w", id, err)
	}
	return c, nil
}

// Get returns the likes and comments of an item. Unknown items have zero likes and no comments.
func (s *Service) Get(ctx context.Context, id string) (dominter.Record, error) {
	if err := dominter.ValidateItemID(id); err != nil {
		return dominter.Record{}, err
	}
	rec, err := s.ledger.Get(ctx, id)
	if err != nil {
		return dominter.Record{}, fmt.Errorf("get %s: %w", id, err)
	}
	return rec, nil
}
