// Package wiring holds small adapters that compose the cache and
// persistence layers into the narrow interfaces internal/judge and
// internal/search depend on, so neither package has to know about sqlx or
// the cache's atomic-snapshot internals.
package wiring

import (
	"context"

	"github.com/twmsh/trackfusion/internal/cache"
	"github.com/twmsh/trackfusion/internal/dao"
	"github.com/twmsh/trackfusion/internal/model"
)

// Persons combines the library DAO's point lookups with the cache's
// in-memory library/group lookups to satisfy internal/judge.Persons.
type Persons struct {
	DAO   *dao.LibraryDAO
	Cache *cache.Cache
}

func (p *Persons) GetPerson(ctx context.Context, personID string) (*model.Person, error) {
	return p.DAO.GetPerson(ctx, personID)
}

func (p *Persons) GetVOI(ctx context.Context, plate string) (*model.VehicleOfInterest, error) {
	return p.DAO.GetVOI(ctx, plate)
}

func (p *Persons) Library(id string) (model.Library, bool) { return p.Cache.Library(id) }
func (p *Persons) Group(id string) (model.Group, bool)     { return p.Cache.Group(id) }
