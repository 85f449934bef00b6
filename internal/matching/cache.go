package matching

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fortuna/concordia/internal/store"
)

// RunCache is the per-run, process-local view of aliases and candidate
// teams. It is populated by one bulk read at matcher construction and
// never refreshed mid-run; teams and aliases created by this run are
// added in-memory so later lookups in the same run see them. Teams
// created by a concurrent run stay invisible until the next run loads a
// fresh cache.
type RunCache struct {
	providerID    string
	aliases       map[string]*store.TeamAlias
	aliasesByName map[string]*store.TeamAlias
	teams         []*store.MasterTeam
	teamsByID     map[int64]*store.MasterTeam
}

// NewRunCache bulk-loads the aliases for one provider and the candidate
// team pool. A non-empty state restricts the pool to that state for
// state-scoped providers.
func NewRunCache(ctx context.Context, providerID, state string, aliases AliasStore, teams TeamStore, logger *zap.Logger) (*RunCache, error) {
	aliasList, err := aliases.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("loading aliases for %s: %w", providerID, err)
	}

	var teamList []*store.MasterTeam
	if state != "" {
		teamList, err = teams.GetByState(ctx, state)
	} else {
		teamList, err = teams.GetAll(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("loading candidate teams: %w", err)
	}

	cache := &RunCache{
		providerID:    providerID,
		aliases:       make(map[string]*store.TeamAlias, len(aliasList)),
		aliasesByName: make(map[string]*store.TeamAlias, len(aliasList)),
		teams:         teamList,
		teamsByID:     make(map[int64]*store.MasterTeam, len(teamList)),
	}
	for _, a := range aliasList {
		cache.aliases[a.AliasKey] = a
		if a.TeamName.Valid {
			cache.aliasesByName[NormalizeTeamName(a.TeamName.String)] = a
		}
	}
	for _, t := range teamList {
		cache.teamsByID[t.TeamID] = t
	}

	logger.Info("run cache loaded",
		zap.String("provider", providerID),
		zap.Int("aliases", len(aliasList)),
		zap.Int("teams", len(teamList)))

	return cache, nil
}

// Alias returns the cached alias for a key, if any.
func (c *RunCache) Alias(key string) (*store.TeamAlias, bool) {
	a, ok := c.aliases[key]
	return a, ok
}

// AliasByName returns the cached alias whose stored team name normalizes
// to the same form as the given name.
func (c *RunCache) AliasByName(name string) (*store.TeamAlias, bool) {
	a, ok := c.aliasesByName[NormalizeTeamName(name)]
	return a, ok
}

// PutAlias records an alias created during this run.
func (c *RunCache) PutAlias(a *store.TeamAlias) {
	c.aliases[a.AliasKey] = a
	if a.TeamName.Valid {
		c.aliasesByName[NormalizeTeamName(a.TeamName.String)] = a
	}
}

// Teams returns the candidate team pool, including teams created during
// this run.
func (c *RunCache) Teams() []*store.MasterTeam {
	return c.teams
}

// TeamByID returns a team from the pool by id.
func (c *RunCache) TeamByID(id int64) (*store.MasterTeam, bool) {
	t, ok := c.teamsByID[id]
	return t, ok
}

// PutTeam records a master team created during this run, making it a
// candidate for later lookups within the run.
func (c *RunCache) PutTeam(t *store.MasterTeam) {
	if _, ok := c.teamsByID[t.TeamID]; ok {
		return
	}
	c.teams = append(c.teams, t)
	c.teamsByID[t.TeamID] = t
}
