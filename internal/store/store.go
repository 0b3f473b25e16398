package store

import (
	"context"

	"github.com/nhle/redtime/internal/model"
)

// MutationFilter narrows RecentMutations.
type MutationFilter struct {
	Resource   *string
	Operation  *string
	FailedOnly bool
	Limit      int
}

// Store defines the persistence interface for the mutation journal.
// It satisfies remote.Auditor.
type Store interface {
	RecordMutation(ctx context.Context, m model.Mutation) (string, error)
	CompleteMutation(ctx context.Context, id string, status int, errMsg string) error
	RecentMutations(ctx context.Context, filter MutationFilter) ([]model.Mutation, error)
	GetMutation(ctx context.Context, id string) (*model.Mutation, error)
	PruneMutations(ctx context.Context, keep int) (int64, error)

	Close() error
}
