package dao

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/twmsh/trackfusion/internal/model"
)

// libraryRow/groupRow/personRow/voiRow/cameraRow carry sqlx `db` tags for
// struct scanning.
type libraryRow struct {
	LibraryID string `db:"library_id"`
	Name      string `db:"name"`
	BWFlag    int    `db:"bw_flag"`
	AutoMatch int    `db:"auto_match"`
	FPFlag    int    `db:"fp_flag"`
}

type personRow struct {
	PersonID    string  `db:"person_id"`
	LibraryID   string  `db:"library_id"`
	Name        string  `db:"name"`
	Gender      int     `db:"gender"`
	IDCard      string  `db:"id_card"`
	Threshold   float64 `db:"threshold"`
	FeatureIDs  string  `db:"feature_ids"`
	CoverFaceID string  `db:"cover_face_id"`
	Tag         string  `db:"tag"`
}

type groupRow struct {
	GroupID string `db:"group_id"`
	Name    string `db:"name"`
	BWFlag  int    `db:"bw_flag"`
}

type voiRow struct {
	Plate   string `db:"plate"`
	GroupID string `db:"group_id"`
	Owner   string `db:"owner"`
}

type cameraRow struct {
	CameraID string `db:"camera_id"`
	Name     string `db:"name"`
	URL      string `db:"url"`
	State    int    `db:"state"`
}

// LibraryDAO backs the library/group/person/voi/camera lookups used by the
// search, judgement and intake subsystems.
type LibraryDAO struct {
	db *DB
}

// NewLibraryDAO wraps a DB for library/person/VOI access.
func NewLibraryDAO(db *DB) *LibraryDAO { return &LibraryDAO{db: db} }

// LoadAutoMatchLibraries returns libraries with auto_match=1 AND fp_flag=1,
// the set the face search workers query (spec.md §4.E). Callers are
// expected to cache this for the process lifetime (spec.md §5, §9).
func (l *LibraryDAO) LoadAutoMatchLibraries(ctx context.Context) ([]model.Library, error) {
	var rows []libraryRow
	err := l.db.Do(ctx, func(conn *sqlx.DB) error {
		return conn.SelectContext(ctx, &rows, `
			SELECT library_id, name, bw_flag, auto_match, fp_flag
			FROM libraries WHERE auto_match=1 AND fp_flag=1
		`)
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.Library, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Library{
			LibraryID: r.LibraryID, Name: r.Name, BWFlag: r.BWFlag,
			AutoMatch: r.AutoMatch != 0, FPFlag: r.FPFlag != 0,
		})
	}
	return out, nil
}

// LoadAllLibraries returns every library, keyed for judgement-time B/W
// lookups regardless of auto_match/fp_flag.
func (l *LibraryDAO) LoadAllLibraries(ctx context.Context) (map[string]model.Library, error) {
	var rows []libraryRow
	err := l.db.Do(ctx, func(conn *sqlx.DB) error {
		return conn.SelectContext(ctx, &rows, `SELECT library_id, name, bw_flag, auto_match, fp_flag FROM libraries`)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.Library, len(rows))
	for _, r := range rows {
		out[r.LibraryID] = model.Library{
			LibraryID: r.LibraryID, Name: r.Name, BWFlag: r.BWFlag,
			AutoMatch: r.AutoMatch != 0, FPFlag: r.FPFlag != 0,
		}
	}
	return out, nil
}

// GetPerson looks up a person's full row by ID, the threshold + library
// source for face judgement (spec.md §4.F).
func (l *LibraryDAO) GetPerson(ctx context.Context, personID string) (*model.Person, error) {
	var r personRow
	err := l.db.Do(ctx, func(conn *sqlx.DB) error {
		return conn.GetContext(ctx, &r, `
			SELECT person_id, library_id, name, gender, id_card, threshold, feature_ids, cover_face_id, tag
			FROM persons WHERE person_id = $1
		`, personID)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	refs, err := DecodeImgIDs(r.FeatureIDs)
	if err != nil {
		refs = nil
	}
	return &model.Person{
		PersonID: r.PersonID, LibraryID: r.LibraryID, Name: r.Name, Gender: r.Gender,
		IDCard: r.IDCard, Threshold: r.Threshold, FeatureIDs: refs,
		CoverFaceID: r.CoverFaceID, Tag: r.Tag,
	}, nil
}

// LoadAllGroups returns every plate group, keyed by group ID.
func (l *LibraryDAO) LoadAllGroups(ctx context.Context) (map[string]model.Group, error) {
	var rows []groupRow
	err := l.db.Do(ctx, func(conn *sqlx.DB) error {
		return conn.SelectContext(ctx, &rows, `SELECT group_id, name, bw_flag FROM groups`)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.Group, len(rows))
	for _, r := range rows {
		out[r.GroupID] = model.Group{GroupID: r.GroupID, Name: r.Name, BWFlag: r.BWFlag}
	}
	return out, nil
}

// GetVOI looks up a vehicle-of-interest row by normalized plate text.
func (l *LibraryDAO) GetVOI(ctx context.Context, plate string) (*model.VehicleOfInterest, error) {
	var r voiRow
	err := l.db.Do(ctx, func(conn *sqlx.DB) error {
		return conn.GetContext(ctx, &r, `SELECT plate, group_id, owner FROM vehicles_of_interest WHERE plate = $1`, plate)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &model.VehicleOfInterest{Plate: r.Plate, GroupID: r.GroupID, Owner: r.Owner}, nil
}

// GetCamera resolves a camera record by ID; absence is non-fatal to the
// caller (spec.md §4.B step 2).
func (l *LibraryDAO) GetCamera(ctx context.Context, cameraID string) (*model.Camera, error) {
	var r cameraRow
	err := l.db.Do(ctx, func(conn *sqlx.DB) error {
		return conn.GetContext(ctx, &r, `SELECT camera_id, name, url, state FROM cameras WHERE camera_id = $1`, cameraID)
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &model.Camera{CameraID: r.CameraID, Name: r.Name, URL: r.URL, State: r.State}, nil
}

// InsertPersons inserts every person in a single transaction (bulk
// enrollment, spec.md §4.J); failed rows are logged and counted but do not
// abort the transaction.
func (l *LibraryDAO) InsertPersons(ctx context.Context, libraryID string, persons []model.Person, onRowError func(model.Person, error)) (succ, fail int, err error) {
	err = l.db.Do(ctx, func(conn *sqlx.DB) error {
		tx, e := conn.BeginTxx(ctx, nil)
		if e != nil {
			return e
		}
		for _, p := range persons {
			refs := EncodeFeatureRefs(p.FeatureIDs)
			if _, e := tx.ExecContext(ctx, `SAVEPOINT person_row`); e != nil {
				_ = tx.Rollback()
				return e
			}
			_, e := tx.ExecContext(ctx, `
				INSERT INTO persons (person_id, library_id, name, gender, id_card, threshold, feature_ids, cover_face_id, tag)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
				ON CONFLICT (person_id) DO UPDATE SET
					name=EXCLUDED.name, gender=EXCLUDED.gender, id_card=EXCLUDED.id_card,
					feature_ids=EXCLUDED.feature_ids, cover_face_id=EXCLUDED.cover_face_id, tag=EXCLUDED.tag
			`, p.PersonID, libraryID, p.Name, p.Gender, p.IDCard, p.Threshold, refs, p.CoverFaceID, p.Tag)
			if e != nil {
				if _, re := tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT person_row`); re != nil {
					_ = tx.Rollback()
					return re
				}
				fail++
				if onRowError != nil {
					onRowError(p, e)
				}
				continue
			}
			succ++
		}
		return tx.Commit()
	})
	return
}

