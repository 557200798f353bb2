package judge

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/twmsh/trackfusion/internal/model"
)

type fakePersons struct {
	persons map[string]*model.Person
	vois    map[string]*model.VehicleOfInterest
	libs    map[string]model.Library
	groups  map[string]model.Group
}

func (f *fakePersons) GetPerson(ctx context.Context, id string) (*model.Person, error) {
	p, ok := f.persons[id]
	if !ok {
		return nil, errNotFound
	}
	return p, nil
}

func (f *fakePersons) GetVOI(ctx context.Context, plate string) (*model.VehicleOfInterest, error) {
	v, ok := f.vois[plate]
	if !ok {
		return nil, errNotFound
	}
	return v, nil
}

func (f *fakePersons) Library(id string) (model.Library, bool) {
	lib, ok := f.libs[id]
	return lib, ok
}

func (f *fakePersons) Group(id string) (model.Group, bool) {
	g, ok := f.groups[id]
	return g, ok
}

type errType struct{}

func (errType) Error() string { return "not found" }

var errNotFound = errType{}

type fakeTracks struct {
	faceUpdates    int
	vehicleUpdates int
}

func (f *fakeTracks) UpdateFaceJudgement(ctx context.Context, snap *model.Snapshot) error {
	f.faceUpdates++
	return nil
}

func (f *fakeTracks) UpdateVehicleJudgement(ctx context.Context, snap *model.Snapshot) error {
	f.vehicleUpdates++
	return nil
}

func newTestWorker(wlAlarm bool, persons *fakePersons, tracks *fakeTracks, out chan *model.Snapshot) *Worker {
	return New(persons, tracks, wlAlarm, out, logrus.NewEntry(logrus.New()))
}

func TestFaceJudgedAboveThresholdWhiteListMode(t *testing.T) {
	persons := &fakePersons{
		persons: map[string]*model.Person{"P1": {PersonID: "P1", LibraryID: "L1", Threshold: 80}},
		libs:    map[string]model.Library{"L1": {LibraryID: "L1", BWFlag: bwWhite}},
	}
	tracks := &fakeTracks{}
	out := make(chan *model.Snapshot, 1)
	w := newTestWorker(true, persons, tracks, out)

	snap := &model.Snapshot{Kind: model.KindFace, MatchPerson: &model.MatchPerson{PersonID: "P1", Score: 90}}
	w.judge(context.Background(), snap)

	require.True(t, snap.Judged)
	require.False(t, snap.Alarmed, "white-list match must suppress the alarm")
	require.Equal(t, 1, tracks.faceUpdates)
}

func TestFaceJudgedBelowThresholdNoMatchWhiteListMode(t *testing.T) {
	persons := &fakePersons{
		persons: map[string]*model.Person{"P1": {PersonID: "P1", LibraryID: "L1", Threshold: 80}},
		libs:    map[string]model.Library{"L1": {LibraryID: "L1", BWFlag: bwWhite}},
	}
	tracks := &fakeTracks{}
	out := make(chan *model.Snapshot, 1)
	w := newTestWorker(true, persons, tracks, out)

	snap := &model.Snapshot{Kind: model.KindFace, MatchPerson: &model.MatchPerson{PersonID: "P1", Score: 50}}
	w.judge(context.Background(), snap)

	require.False(t, snap.Judged)
	require.True(t, snap.Alarmed, "below-threshold match in white-list mode still alarms")
}

func TestFaceBlackListModeOnlyAlarmsOnBlackListMatch(t *testing.T) {
	persons := &fakePersons{
		persons: map[string]*model.Person{"P1": {PersonID: "P1", LibraryID: "L1", Threshold: 80}},
		libs:    map[string]model.Library{"L1": {LibraryID: "L1", BWFlag: bwBlack}},
	}
	tracks := &fakeTracks{}
	out := make(chan *model.Snapshot, 1)
	w := newTestWorker(false, persons, tracks, out)

	snap := &model.Snapshot{Kind: model.KindFace, MatchPerson: &model.MatchPerson{PersonID: "P1", Score: 95}}
	w.judge(context.Background(), snap)

	require.True(t, snap.Judged)
	require.True(t, snap.Alarmed)
}

func TestFaceNoMatchIsUnjudged(t *testing.T) {
	tracks := &fakeTracks{}
	out := make(chan *model.Snapshot, 1)
	w := newTestWorker(false, &fakePersons{}, tracks, out)

	snap := &model.Snapshot{Kind: model.KindFace}
	w.judge(context.Background(), snap)

	require.False(t, snap.Judged)
	require.False(t, snap.Alarmed)
}

func TestVehicleVOIMatchJudgedTrue(t *testing.T) {
	persons := &fakePersons{
		vois:   map[string]*model.VehicleOfInterest{"ABC123": {Plate: "ABC123", GroupID: "G1"}},
		groups: map[string]model.Group{"G1": {GroupID: "G1", BWFlag: bwBlack}},
	}
	tracks := &fakeTracks{}
	out := make(chan *model.Snapshot, 1)
	w := newTestWorker(false, persons, tracks, out)

	snap := &model.Snapshot{Kind: model.KindVehicle, PlateInfo: &model.PlateInfo{Text: "ABC123"}}
	w.judge(context.Background(), snap)

	require.True(t, snap.Judged)
	require.True(t, snap.Alarmed)
	require.Equal(t, "G1", snap.MatchVOI.GroupID)
	require.Equal(t, 1, tracks.vehicleUpdates)
}

func TestVehicleNoPlateIsUnjudged(t *testing.T) {
	tracks := &fakeTracks{}
	out := make(chan *model.Snapshot, 1)
	w := newTestWorker(true, &fakePersons{}, tracks, out)

	snap := &model.Snapshot{Kind: model.KindVehicle}
	w.judge(context.Background(), snap)

	require.False(t, snap.Judged)
	require.True(t, snap.Alarmed)
}

func TestRunForwardsAllSnapshots(t *testing.T) {
	tracks := &fakeTracks{}
	out := make(chan *model.Snapshot, 2)
	w := newTestWorker(true, &fakePersons{}, tracks, out)

	in := make(chan *model.Snapshot, 2)
	in <- &model.Snapshot{Kind: model.KindFace, TrackID: "T1"}
	in <- &model.Snapshot{Kind: model.KindVehicle, TrackID: "T2"}
	close(in)

	w.Run(context.Background(), in)

	close(out)
	var ids []string
	for snap := range out {
		ids = append(ids, snap.TrackID)
	}
	require.ElementsMatch(t, []string{"T1", "T2"}, ids)
}
