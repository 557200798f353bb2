package dashboard

import "github.com/twmsh/trackfusion/internal/model"

// wsMessage is the shape of both the connect message and every subsequent
// increment message, per spec.md §6: `{stat:{...}, track:[...]}`.
type wsMessage struct {
	Stat  statPayload `json:"stat"`
	Track []trackItem `json:"track"`
}

type statPayload struct {
	TotalFaceCount int64 `json:"total_face_count"`
	TotalFaceAlarm int64 `json:"total_face_alarm"`
	TotalCarCount  int64 `json:"total_car_count"`
	TotalCarAlarm  int64 `json:"total_car_alarm"`
}

// trackItem wraps one snapshot as {"ft":{...}} or {"ct":{...}} per
// spec.md §6's tagging rule.
type trackItem struct {
	FT *faceItem    `json:"ft,omitempty"`
	CT *vehicleItem `json:"ct,omitempty"`
}

type faceItem struct {
	TrackID    string  `json:"track_id"`
	SourceID   string  `json:"source_id"`
	CapturedAt int64   `json:"captured_at"`
	ImgIDs     string  `json:"img_ids"`
	Matched    bool    `json:"matched"`
	Judged     bool    `json:"judged"`
	Alarmed    bool    `json:"alarmed"`
	PersonID   string  `json:"person_id,omitempty"`
	Score      float64 `json:"score,omitempty"`
	CameraName string  `json:"camera_name,omitempty"`
}

type vehicleItem struct {
	TrackID    string `json:"track_id"`
	SourceID   string `json:"source_id"`
	CapturedAt int64  `json:"captured_at"`
	ImgIDs     string `json:"img_ids"`
	PlateText  string `json:"plate_text,omitempty"`
	Matched    bool   `json:"matched"`
	Judged     bool   `json:"judged"`
	Alarmed    bool   `json:"alarmed"`
	VOIPlate   string `json:"voi_plate,omitempty"`
	CameraName string `json:"camera_name,omitempty"`
}

func toTrackItem(snap *model.Snapshot) trackItem {
	switch snap.Kind {
	case model.KindFace:
		item := faceItem{
			TrackID: snap.TrackID, SourceID: snap.SourceID,
			CapturedAt: snap.CapturedAt.Unix(), ImgIDs: snap.ImgIDs,
			Matched: snap.Matched, Judged: snap.Judged, Alarmed: snap.Alarmed,
			CameraName: snap.CameraName,
		}
		if snap.MatchPerson != nil {
			item.PersonID = snap.MatchPerson.PersonID
			item.Score = snap.MatchPerson.Score
		}
		return trackItem{FT: &item}
	default:
		item := vehicleItem{
			TrackID: snap.TrackID, SourceID: snap.SourceID,
			CapturedAt: snap.CapturedAt.Unix(), ImgIDs: snap.ImgIDs,
			Matched: snap.Matched, Judged: snap.Judged, Alarmed: snap.Alarmed,
			CameraName: snap.CameraName,
		}
		if snap.PlateInfo != nil {
			item.PlateText = snap.PlateInfo.Text
		}
		if snap.MatchVOI != nil {
			item.VOIPlate = snap.MatchVOI.VOIPlate
		}
		return trackItem{CT: &item}
	}
}

func toMessage(counters Counters, snaps []*model.Snapshot) wsMessage {
	items := make([]trackItem, len(snaps))
	for i, s := range snaps {
		items[i] = toTrackItem(s)
	}
	return wsMessage{
		Stat: statPayload{
			TotalFaceCount: counters.TotalFaceCount, TotalFaceAlarm: counters.TotalFaceAlarm,
			TotalCarCount: counters.TotalCarCount, TotalCarAlarm: counters.TotalCarAlarm,
		},
		Track: items,
	}
}
