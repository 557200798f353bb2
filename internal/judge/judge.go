// Package judge applies threshold judgement and black/white-list alarm
// policy to searched snapshots (spec.md §4.F), then persists the result
// and forwards the enriched snapshot to the event bus regardless of
// whether persistence succeeded.
package judge

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/twmsh/trackfusion/internal/model"
)

// bwBlack/bwWhite mirror model.Library/model.Group's documented BWFlag
// encoding (1=black, 2=white).
const (
	bwBlack = 1
	bwWhite = 2
)

// Persons is the subset of internal/dao.LibraryDAO person/VOI/group
// lookups judgement needs, narrowed to an interface for fakeable tests.
type Persons interface {
	GetPerson(ctx context.Context, personID string) (*model.Person, error)
	GetVOI(ctx context.Context, plate string) (*model.VehicleOfInterest, error)
	Library(id string) (model.Library, bool)
	Group(id string) (model.Group, bool)
}

// Tracks is the subset of internal/dao.TrackDAO judgement writes to.
type Tracks interface {
	UpdateFaceJudgement(ctx context.Context, snap *model.Snapshot) error
	UpdateVehicleJudgement(ctx context.Context, snap *model.Snapshot) error
}

// Worker judges one snapshot at a time, consuming the search-stage output
// channel and producing judged snapshots on out.
type Worker struct {
	persons Persons
	tracks  Tracks
	wlAlarm bool // true=white-list mode, false=black-list mode
	out     chan<- *model.Snapshot
	log     *logrus.Entry
}

// New constructs a judgement worker.
func New(persons Persons, tracks Tracks, wlAlarm bool, out chan<- *model.Snapshot, log *logrus.Entry) *Worker {
	return &Worker{persons: persons, tracks: tracks, wlAlarm: wlAlarm, out: out, log: log}
}

// Run drains in until it's closed, judging each snapshot in turn.
func (w *Worker) Run(ctx context.Context, in <-chan *model.Snapshot) {
	for snap := range in {
		w.judge(ctx, snap)
		select {
		case w.out <- snap:
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) judge(ctx context.Context, snap *model.Snapshot) {
	switch snap.Kind {
	case model.KindFace:
		w.judgeFace(ctx, snap)
	case model.KindVehicle:
		w.judgeVehicle(ctx, snap)
	}

	var err error
	if snap.Kind == model.KindFace {
		err = w.tracks.UpdateFaceJudgement(ctx, snap)
	} else {
		err = w.tracks.UpdateVehicleJudgement(ctx, snap)
	}
	if err != nil {
		// Publication proceeds regardless (spec.md §4.F "publish ...
		// regardless of update success"); the row simply lags until the
		// next judged event for this track, if any.
		w.log.WithError(err).WithField("track_id", snap.TrackID).Warn("judgement row update failed")
	}
}

func (w *Worker) judgeFace(ctx context.Context, snap *model.Snapshot) {
	if snap.MatchPerson == nil {
		snap.Judged = false
		snap.Alarmed = w.wlAlarm
		return
	}

	person, err := w.persons.GetPerson(ctx, snap.MatchPerson.PersonID)
	if err != nil {
		w.log.WithError(err).WithField("person_id", snap.MatchPerson.PersonID).Warn("person lookup failed, treating as unjudged")
		snap.Judged = false
		snap.Alarmed = w.wlAlarm
		return
	}

	snap.Judged = snap.MatchPerson.Score >= person.Threshold
	lib, _ := w.persons.Library(person.LibraryID)
	snap.Alarmed = alarmed(w.wlAlarm, snap.Judged, lib.BWFlag)
}

func (w *Worker) judgeVehicle(ctx context.Context, snap *model.Snapshot) {
	if !snap.PlateInfo.HasPlateInfo() {
		snap.Judged = false
		snap.Alarmed = w.wlAlarm
		return
	}

	voi, err := w.persons.GetVOI(ctx, snap.PlateInfo.Text)
	if err != nil {
		snap.Judged = false
		snap.Alarmed = w.wlAlarm
		return
	}

	snap.Judged = true
	snap.MatchVOI = &model.MatchVOI{VOIPlate: voi.Plate, GroupID: voi.GroupID}
	group, _ := w.persons.Group(voi.GroupID)
	snap.MatchVOI.GroupBW = group.BWFlag
	snap.Alarmed = alarmed(w.wlAlarm, snap.Judged, group.BWFlag)
}

// alarmed implements spec.md §4.F's alarm law:
//   - white-list mode: alarmed unless a judged match sits in a white-list
//     (bw=2) library/group.
//   - black-list mode: not alarmed unless a judged match sits in a
//     black-list (bw=1) library/group.
func alarmed(wlAlarm bool, judged bool, bwFlag int) bool {
	if wlAlarm {
		if judged && bwFlag == bwWhite {
			return false
		}
		return true
	}
	return judged && bwFlag == bwBlack
}
