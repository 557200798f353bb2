// Package cache holds the in-memory library/group lookups the search and
// judgement stages need on every snapshot: reloading them from Postgres
// per call would defeat the purpose of a worker pool, so they are loaded
// once at startup and swapped atomically on refresh (spec.md §4.E/§4.F).
package cache

import (
	"context"
	"sync/atomic"

	"github.com/twmsh/trackfusion/internal/dao"
	"github.com/twmsh/trackfusion/internal/model"
)

type snapshot struct {
	autoMatchLibraries []model.Library
	allLibraries       map[string]model.Library
	allGroups          map[string]model.Group
}

// Cache is a lock-free-read cache of library/group metadata, refreshed by
// swapping an atomic pointer to a new snapshot.
type Cache struct {
	libraries *dao.LibraryDAO
	current   atomic.Pointer[snapshot]
}

// New creates a Cache backed by libraries; call Refresh at least once
// before use.
func New(libraries *dao.LibraryDAO) *Cache {
	return &Cache{libraries: libraries}
}

// Refresh reloads all three lookups from Postgres and swaps them in.
func (c *Cache) Refresh(ctx context.Context) error {
	autoMatch, err := c.libraries.LoadAutoMatchLibraries(ctx)
	if err != nil {
		return err
	}
	all, err := c.libraries.LoadAllLibraries(ctx)
	if err != nil {
		return err
	}
	groups, err := c.libraries.LoadAllGroups(ctx)
	if err != nil {
		return err
	}
	c.current.Store(&snapshot{
		autoMatchLibraries: autoMatch,
		allLibraries:       all,
		allGroups:          groups,
	})
	return nil
}

// AutoMatchLibraryIDs returns the IDs of libraries with auto_match=1 and
// fp_flag=1, the set spec.md §4.E's search call queries.
func (c *Cache) AutoMatchLibraryIDs() []string {
	snap := c.current.Load()
	if snap == nil {
		return nil
	}
	ids := make([]string, len(snap.autoMatchLibraries))
	for i, lib := range snap.autoMatchLibraries {
		ids[i] = lib.LibraryID
	}
	return ids
}

// Library looks up a library's cached row by ID.
func (c *Cache) Library(id string) (model.Library, bool) {
	snap := c.current.Load()
	if snap == nil {
		return model.Library{}, false
	}
	lib, ok := snap.allLibraries[id]
	return lib, ok
}

// Group looks up a plate group's cached row by ID.
func (c *Cache) Group(id string) (model.Group, bool) {
	snap := c.current.Load()
	if snap == nil {
		return model.Group{}, false
	}
	g, ok := snap.allGroups[id]
	return g, ok
}
