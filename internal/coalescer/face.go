package coalescer

import (
	"context"
	"time"

	"github.com/twmsh/trackfusion/internal/dao"
	"github.com/twmsh/trackfusion/internal/imagestore"
	"github.com/twmsh/trackfusion/internal/model"
)

// FacePolicy implements Policy for face tracks (spec.md §4.B, readiness
// criteria for "face").
type FacePolicy struct {
	Images *imagestore.Store
	Tracks *dao.TrackDAO

	Fast       bool
	QualityMin float64
	CountMin   int
	ReadyD     time.Duration
	ClearD     time.Duration
}

func (p *FacePolicy) Kind() model.TrackKind      { return model.KindFace }
func (p *FacePolicy) ReadyDelay() time.Duration  { return p.ReadyD }
func (p *FacePolicy) ClearDelay() time.Duration  { return p.ClearD }

// IsReady: fast mode is immediately ready; otherwise ready once the count
// of detections with quality > QualityMin and a present feature blob
// reaches CountMin (spec.md §4.B "Readiness criteria (face)").
func (p *FacePolicy) IsReady(track *model.Track, _ bool) bool {
	if p.Fast {
		return true
	}
	qualified := 0
	for _, d := range track.Detections {
		if d.Quality > p.QualityMin && d.Feature != "" {
			qualified++
		}
	}
	return qualified >= p.CountMin
}

// WriteImages persists the background (when present) and every
// unpersisted detection's small/large crops, advancing track.WP on each
// successfully written index.
func (p *FacePolicy) WriteImages(track *model.Track, wpOld int) error {
	if track.Background != nil && track.Background.Image != nil {
		if err := p.Images.WriteTrackImage(imagestore.CategoryFace, track.ID, 0, imagestore.TypeBG, track.Background.Image); err != nil {
			return err
		}
	}

	wp := wpOld
	for i := wpOld; i < len(track.Detections); i++ {
		d := &track.Detections[i]
		if d.SmallImage != nil {
			if err := p.Images.WriteTrackImage(imagestore.CategoryFace, track.ID, d.Index, imagestore.TypeSmall, d.SmallImage); err != nil {
				track.WP = wp
				return err
			}
		}
		if d.LargeImage != nil {
			if err := p.Images.WriteTrackImage(imagestore.CategoryFace, track.ID, d.Index, imagestore.TypeLarge, d.LargeImage); err != nil {
				track.WP = wp
				return err
			}
		}
		wp = d.Index
	}
	track.WP = wp
	return nil
}

func (p *FacePolicy) InsertRow(ctx context.Context, track *model.Track) error {
	return p.Tracks.InsertFaceTrack(ctx, track)
}

func (p *FacePolicy) UpdateRow(ctx context.Context, track *model.Track) error {
	return p.Tracks.UpdateFaceTrack(ctx, track)
}

func (p *FacePolicy) BuildSnapshot(track *model.Track, camera *model.Camera) *model.Snapshot {
	features := make([]string, 0, len(track.Detections))
	for _, d := range track.Detections {
		if d.Feature != "" {
			features = append(features, d.Feature)
		}
	}
	cameraName := ""
	if camera != nil {
		cameraName = camera.Name
	}
	return &model.Snapshot{
		TrackID:    track.ID,
		Kind:       model.KindFace,
		SourceID:   track.SourceID,
		CapturedAt: track.CapturedAt,
		ImgIDs:     dao.EncodeImgIDs(track.Detections),
		FaceProps:  track.FaceProps,
		Features:   features,
		CameraName: cameraName,
	}
}
