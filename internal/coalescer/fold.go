package coalescer

import "github.com/twmsh/trackfusion/internal/model"

// foldResult reports what changed while folding a notification into a
// track, which step 4 of the per-batch algorithm needs to decide whether
// an incremental save is required.
type foldResult struct {
	detectionsAdded   bool
	backgroundChanged bool
}

// foldNotification merges one notification into track per spec.md §4.B
// step 1: background latest-wins, detections appended preserving arrival
// order, face props latest-wins as a whole, plate-info and vehicle-props
// independently latest-wins.
func foldNotification(track *model.Track, n *model.TrackNotification) foldResult {
	var r foldResult

	if track.SourceID == "" {
		track.SourceID = n.SourceID
	}
	if track.CapturedAt.IsZero() {
		track.CapturedAt = n.CapturedAt
	}

	if n.Background != nil {
		track.Background = n.Background
		r.backgroundChanged = true
	}

	if len(n.Detections) > 0 {
		base := len(track.Detections)
		for i, d := range n.Detections {
			d.Index = base + i + 1
			track.Detections = append(track.Detections, d)
		}
		r.detectionsAdded = true
	}

	if n.FaceProps != nil {
		track.FaceProps = n.FaceProps
	}
	if n.PlateInfo != nil {
		track.PlateInfo = n.PlateInfo
	}
	if n.VehicleProps != nil {
		track.VehicleProps = n.VehicleProps
	}

	return r
}
