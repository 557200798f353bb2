package dashboard

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/twmsh/trackfusion/internal/model"
)

func TestToTrackItemTagsFaceAsFT(t *testing.T) {
	snap := &model.Snapshot{TrackID: "T1", Kind: model.KindFace, MatchPerson: &model.MatchPerson{PersonID: "P1", Score: 91}}
	item := toTrackItem(snap)
	require.NotNil(t, item.FT)
	require.Nil(t, item.CT)
	require.Equal(t, "P1", item.FT.PersonID)
}

func TestToTrackItemTagsVehicleAsCT(t *testing.T) {
	snap := &model.Snapshot{TrackID: "T2", Kind: model.KindVehicle, PlateInfo: &model.PlateInfo{Text: "ABC123"}}
	item := toTrackItem(snap)
	require.NotNil(t, item.CT)
	require.Nil(t, item.FT)
	require.Equal(t, "ABC123", item.CT.PlateText)
}

func TestToMessageCarriesCountersAndItems(t *testing.T) {
	counters := Counters{TotalFaceCount: 3, TotalFaceAlarm: 1}
	msg := toMessage(counters, []*model.Snapshot{{Kind: model.KindFace, TrackID: "T1"}})
	require.Equal(t, int64(3), msg.Stat.TotalFaceCount)
	require.Len(t, msg.Track, 1)
}
