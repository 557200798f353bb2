package dao

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// GCDAO backs the disk-pressure GC's oldest-N reclamation (spec.md §4.I).
type GCDAO struct {
	db *DB
}

// NewGCDAO wraps a DB for GC queries.
func NewGCDAO(db *DB) *GCDAO { return &GCDAO{db: db} }

// OldestFaceTrackIDs returns the n oldest face-track IDs by created_at.
func (g *GCDAO) OldestFaceTrackIDs(ctx context.Context, n int) ([]string, error) {
	return g.oldestIDs(ctx, "face_tracks", n)
}

// OldestVehicleTrackIDs returns the n oldest vehicle-track IDs by created_at.
func (g *GCDAO) OldestVehicleTrackIDs(ctx context.Context, n int) ([]string, error) {
	return g.oldestIDs(ctx, "car_tracks", n)
}

func (g *GCDAO) oldestIDs(ctx context.Context, table string, n int) ([]string, error) {
	var ids []string
	err := g.db.Do(ctx, func(conn *sqlx.DB) error {
		return conn.SelectContext(ctx, &ids,
			`SELECT track_id FROM `+table+` ORDER BY created_at ASC, track_id ASC LIMIT $1`, n)
	})
	return ids, err
}

// DeleteFaceTracksUpTo deletes all face-track rows with track_id in ids, in
// a single statement, per spec.md §4.I ("a single statement delete all rows
// with id <= max_collected_id" — modeled here as an IN-list delete since the
// track ID is an opaque string rather than a monotonic integer).
func (g *GCDAO) DeleteFaceTracksUpTo(ctx context.Context, ids []string) error {
	return g.deleteByIDs(ctx, "face_tracks", ids)
}

// DeleteVehicleTracksUpTo deletes car_tracks rows matching ids.
func (g *GCDAO) DeleteVehicleTracksUpTo(ctx context.Context, ids []string) error {
	return g.deleteByIDs(ctx, "car_tracks", ids)
}

func (g *GCDAO) deleteByIDs(ctx context.Context, table string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return g.db.Do(ctx, func(conn *sqlx.DB) error {
		query, args, err := sqlx.In(`DELETE FROM `+table+` WHERE track_id IN (?)`, ids)
		if err != nil {
			return err
		}
		_, err = conn.ExecContext(ctx, conn.Rebind(query), args...)
		return err
	})
}
