package matching

import (
	"context"

	"github.com/fortuna/concordia/internal/store"
)

// AliasStore is the slice of the persistence layer the matchers need for
// alias reads and writes. On a key collision both writes must return the
// surviving alias together with store.ErrAlreadyExists: Create always
// loses to the existing row, Upsert overwrites any unapproved row but
// loses to an approved one.
type AliasStore interface {
	ListByProvider(ctx context.Context, providerID string) ([]*store.TeamAlias, error)
	Create(ctx context.Context, alias *store.TeamAlias) (*store.TeamAlias, error)
	Upsert(ctx context.Context, alias *store.TeamAlias) (*store.TeamAlias, error)
}

// TeamStore is the slice of the persistence layer the matchers need for
// master-team reads and creation.
type TeamStore interface {
	GetAll(ctx context.Context) ([]*store.MasterTeam, error)
	GetByState(ctx context.Context, state string) ([]*store.MasterTeam, error)
	Create(ctx context.Context, team *store.MasterTeam) (*store.MasterTeam, error)
}
