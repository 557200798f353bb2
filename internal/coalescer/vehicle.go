package coalescer

import (
	"context"
	"time"

	"github.com/twmsh/trackfusion/internal/dao"
	"github.com/twmsh/trackfusion/internal/imagestore"
	"github.com/twmsh/trackfusion/internal/model"
)

// VehiclePolicy implements Policy for vehicle tracks (spec.md §4.B,
// readiness criteria for "vehicle").
type VehiclePolicy struct {
	Images *imagestore.Store
	Tracks *dao.TrackDAO

	Fast   bool
	ReadyD time.Duration
	ClearD time.Duration
}

func (p *VehiclePolicy) Kind() model.TrackKind     { return model.KindVehicle }
func (p *VehiclePolicy) ReadyDelay() time.Duration { return p.ReadyD }
func (p *VehiclePolicy) ClearDelay() time.Duration { return p.ClearD }

// IsReady: fast mode is immediately ready; otherwise ready only once the
// readiness timer fires (spec.md §4.B "Vehicle: fast mode -> immediately
// ready; otherwise ready when the readiness timer fires").
func (p *VehiclePolicy) IsReady(_ *model.Track, timerFired bool) bool {
	return p.Fast || timerFired
}

// WriteImages persists the background, plate, and plate-binary images
// (always overwritten when present) and every unpersisted vehicle crop.
func (p *VehiclePolicy) WriteImages(track *model.Track, wpOld int) error {
	if track.Background != nil && track.Background.Image != nil {
		if err := p.Images.WriteTrackImage(imagestore.CategoryVehicle, track.ID, 0, imagestore.TypeBG, track.Background.Image); err != nil {
			return err
		}
	}
	if track.PlateInfo != nil && track.PlateInfo.PlateImage != nil {
		if err := p.Images.WriteTrackImage(imagestore.CategoryVehicle, track.ID, 0, imagestore.TypePlate, track.PlateInfo.PlateImage); err != nil {
			return err
		}
	}
	if track.PlateInfo != nil && track.PlateInfo.PlateBinary != nil {
		if err := p.Images.WriteTrackImage(imagestore.CategoryVehicle, track.ID, 0, imagestore.TypeBinary, track.PlateInfo.PlateBinary); err != nil {
			return err
		}
	}

	wp := wpOld
	for i := wpOld; i < len(track.Detections); i++ {
		d := &track.Detections[i]
		if d.SmallImage != nil {
			if err := p.Images.WriteTrackImage(imagestore.CategoryVehicle, track.ID, d.Index, imagestore.TypeSmall, d.SmallImage); err != nil {
				track.WP = wp
				return err
			}
		}
		wp = d.Index
	}
	track.WP = wp
	return nil
}

func (p *VehiclePolicy) InsertRow(ctx context.Context, track *model.Track) error {
	return p.Tracks.InsertVehicleTrack(ctx, track)
}

func (p *VehiclePolicy) UpdateRow(ctx context.Context, track *model.Track) error {
	return p.Tracks.UpdateVehicleTrack(ctx, track)
}

func (p *VehiclePolicy) BuildSnapshot(track *model.Track, camera *model.Camera) *model.Snapshot {
	cameraName := ""
	if camera != nil {
		cameraName = camera.Name
	}
	return &model.Snapshot{
		TrackID:      track.ID,
		Kind:         model.KindVehicle,
		SourceID:     track.SourceID,
		CapturedAt:   track.CapturedAt,
		ImgIDs:       dao.EncodeVehicleImgIDs(track.Detections),
		PlateInfo:    track.PlateInfo,
		VehicleProps: track.VehicleProps,
		CameraName:   cameraName,
	}
}
