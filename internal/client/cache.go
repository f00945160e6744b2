package client

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"skykeeper/internal/types"
)

// EntryState tracks where a cached snapshot sits in the refresh cycle.
type EntryState string

const (
	// StateClean means the entry matches what the server last returned.
	StateClean EntryState = "clean"
	// StatePending means optimistic values are shown while the server
	// update is in flight.
	StatePending EntryState = "pending"
	// StateConfirmed means the server acknowledged the refresh and the
	// entry holds the server's record.
	StateConfirmed EntryState = "confirmed"
	// StateRolledBack means the server update failed; the entry still shows
	// the optimistic values and is reconciled by the next Load.
	StateRolledBack EntryState = "rolled_back"
)

// Entry is one cached snapshot plus its refresh state.
type Entry struct {
	Snapshot types.WeatherSnapshot
	State    EntryState
}

// SnapshotAPI is the subset of APIClient the cache depends on.
type SnapshotAPI interface {
	ListSaved(ctx context.Context, userID string) ([]*types.WeatherSnapshot, error)
	LookupWeather(ctx context.Context, city string) (*types.Reading, error)
	UpdateSnapshot(ctx context.Context, id string, payload UpdatePayload) (*types.WeatherSnapshot, error)
	DeleteSnapshot(ctx context.Context, id string) error
}

// defaultRefreshConcurrency bounds parallel per-entry refreshes in
// RefreshAll.
const defaultRefreshConcurrency = 4

// SnapshotCache mirrors the signed-in user's saved snapshots. Load is the
// authoritative bulk operation; per-entry Refresh applies optimistic local
// updates that the server then confirms or that are flagged rolled-back.
// Entries keep the server's list order; partial updates never re-sort.
type SnapshotCache struct {
	api    SnapshotAPI
	userID string
	clock  types.Clock

	mu      sync.Mutex
	order   []string
	entries map[string]*Entry
}

// NewSnapshotCache creates an empty cache for the given user. If clock is
// nil, the real clock is used.
func NewSnapshotCache(api SnapshotAPI, userID string, clock types.Clock) *SnapshotCache {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &SnapshotCache{
		api:     api,
		userID:  userID,
		clock:   clock,
		entries: make(map[string]*Entry),
	}
}

// Load replaces the entire cache with the server's current list. An empty
// list is a valid result, not an error. All loaded entries are clean.
func (c *SnapshotCache) Load(ctx context.Context) error {
	snaps, err := c.api.ListSaved(ctx, c.userID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.order = c.order[:0]
	c.entries = make(map[string]*Entry, len(snaps))
	for _, snap := range snaps {
		c.order = append(c.order, snap.ID)
		c.entries[snap.ID] = &Entry{Snapshot: *snap, State: StateClean}
	}
	return nil
}

// Entries returns a copy of the cached entries in server list order.
func (c *SnapshotCache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, 0, len(c.order))
	for _, id := range c.order {
		if e, ok := c.entries[id]; ok {
			out = append(out, *e)
		}
	}
	return out
}

// Get returns the cached entry for id.
func (c *SnapshotCache) Get(id string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len returns the number of cached entries.
func (c *SnapshotCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Refresh fetches fresh conditions for one entry's city and pushes them to
// the server.
//
// The flow is two-phase:
//  1. Lookup current conditions. On failure, the entry is left untouched
//     and the error is returned.
//  2. Apply the fresh values locally (State=pending), then issue the server
//     update with refreshedAt set to now. On success the entry takes the
//     server's record (State=confirmed). On failure the optimistic values
//     stay visible but the entry is flagged rolled-back; the next Load
//     reconciles it.
func (c *SnapshotCache) Refresh(ctx context.Context, id string) error {
	c.mu.Lock()
	entry, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()
		return types.NewAppError(types.ErrCodeNotFoundSnapshot, "snapshot not in cache: "+id, nil)
	}
	city := entry.Snapshot.City
	c.mu.Unlock()

	reading, err := c.api.LookupWeather(ctx, city)
	if err != nil {
		// Phase 1 failure: cache unchanged.
		return err
	}

	refreshedAt := c.clock.Now()

	// Phase 2: optimistic local update.
	c.mu.Lock()
	entry, ok = c.entries[id]
	if !ok {
		c.mu.Unlock()
		return types.NewAppError(types.ErrCodeNotFoundSnapshot, "snapshot not in cache: "+id, nil)
	}
	entry.Snapshot.Temperature = reading.Temperature
	entry.Snapshot.Description = reading.Description
	entry.Snapshot.Humidity = reading.Humidity
	entry.Snapshot.RefreshedAt = &refreshedAt
	entry.State = StatePending
	c.mu.Unlock()

	updated, err := c.api.UpdateSnapshot(ctx, id, UpdatePayload{
		Temperature: &reading.Temperature,
		Description: &reading.Description,
		Humidity:    &reading.Humidity,
		RefreshedAt: &refreshedAt,
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok = c.entries[id]
	if !ok {
		return err
	}

	if err != nil {
		entry.State = StateRolledBack
		return err
	}

	entry.Snapshot = *updated
	entry.State = StateConfirmed
	return nil
}

// Delete removes a snapshot on the server, then drops it from the cache.
// The local entry survives a failed server delete, so the cache never shows
// fewer records than the server holds.
func (c *SnapshotCache) Delete(ctx context.Context, id string) error {
	if err := c.api.DeleteSnapshot(ctx, id); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// RefreshAll refreshes every cached entry with bounded concurrency. Entries
// that fail keep their individual state from Refresh; the first error is
// returned after all refreshes complete. Callers typically follow up with
// Load to reconcile any rolled-back entries.
func (c *SnapshotCache) RefreshAll(ctx context.Context) error {
	c.mu.Lock()
	ids := make([]string, len(c.order))
	copy(ids, c.order)
	c.mu.Unlock()

	// A plain group rather than errgroup.WithContext: one failed entry must
	// not cancel the refreshes still in flight.
	var g errgroup.Group
	g.SetLimit(defaultRefreshConcurrency)

	for _, id := range ids {
		g.Go(func() error {
			return c.Refresh(ctx, id)
		})
	}

	return g.Wait()
}
