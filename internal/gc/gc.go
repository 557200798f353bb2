// Package gc implements the disk-pressure reclamation task of spec.md §4.I:
// a periodic tick checks free space on the image volume, and below
// threshold reclaims the oldest batch of face and vehicle tracks,
// filesystem first, database second.
package gc

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/sirupsen/logrus"

	"github.com/twmsh/trackfusion/internal/imagestore"
)

// Tracks is the subset of internal/dao.GCDAO the collector needs.
type Tracks interface {
	OldestFaceTrackIDs(ctx context.Context, n int) ([]string, error)
	OldestVehicleTrackIDs(ctx context.Context, n int) ([]string, error)
	DeleteFaceTracksUpTo(ctx context.Context, ids []string) error
	DeleteVehicleTracksUpTo(ctx context.Context, ids []string) error
}

// Collector runs the periodic disk-pressure check.
type Collector struct {
	tracks       Tracks
	images       *imagestore.Store
	imageRoot    string
	availSizeMB  int64
	cleanFTBatch int
	cleanCTBatch int
	log          *logrus.Entry

	cron *cron.Cron
}

// New constructs a Collector. The cron schedule is set by Start.
func New(tracks Tracks, images *imagestore.Store, imageRoot string, availSizeMB int64, cleanFTBatch, cleanCTBatch int, log *logrus.Entry) *Collector {
	return &Collector{
		tracks: tracks, images: images, imageRoot: imageRoot,
		availSizeMB: availSizeMB, cleanFTBatch: cleanFTBatch, cleanCTBatch: cleanCTBatch,
		log: log,
	}
}

// Start schedules the periodic tick every intervalMinutes and runs it in
// the background until Stop is called.
func (c *Collector) Start(intervalMinutes int) {
	c.cron = cron.New()
	spec := cronEvery(intervalMinutes)
	c.cron.AddFunc(spec, func() { c.tick(context.Background()) })
	c.cron.Start()
}

// Stop halts the schedule, waiting for any in-flight tick to finish.
func (c *Collector) Stop() {
	if c.cron != nil {
		<-c.cron.Stop().Done()
	}
}

func cronEvery(minutes int) string {
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("@every %dm", minutes)
}

// tick is the unit of work one cron firing performs; kept as a method
// (rather than inlined in Start) so tests can call it directly without
// waiting on a schedule.
func (c *Collector) tick(ctx context.Context) {
	avail, err := diskFreeMB(c.imageRoot)
	if err != nil {
		c.log.WithError(err).Warn("disk usage check failed, skipping GC tick")
		return
	}
	if avail >= c.availSizeMB {
		return
	}

	c.log.WithField("avail_mb", avail).WithField("threshold_mb", c.availSizeMB).Info("disk pressure detected, reclaiming oldest tracks")

	if err := c.reclaim(ctx, imagestore.CategoryFace, c.cleanFTBatch, c.tracks.OldestFaceTrackIDs, c.tracks.DeleteFaceTracksUpTo); err != nil {
		c.log.WithError(err).Warn("face track reclamation failed")
	}
	if err := c.reclaim(ctx, imagestore.CategoryVehicle, c.cleanCTBatch, c.tracks.OldestVehicleTrackIDs, c.tracks.DeleteVehicleTracksUpTo); err != nil {
		c.log.WithError(err).Warn("vehicle track reclamation failed")
	}
}

func (c *Collector) reclaim(ctx context.Context, cat imagestore.Category, batch int,
	oldest func(context.Context, int) ([]string, error),
	deleteUpTo func(context.Context, []string) error,
) error {
	ids, err := oldest(ctx, batch)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	// Filesystem-first, DB-second (spec.md §4.I): a crash here leaves
	// orphan rows, which is harmless and eventually collected by a later
	// tick once the same IDs resurface as the oldest.
	for _, id := range ids {
		if err := c.images.RemoveTrackDir(cat, id); err != nil {
			c.log.WithError(err).WithField("track_id", id).Warn("track directory removal failed")
		}
	}
	return deleteUpTo(ctx, ids)
}

func diskFreeMB(path string) (int64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return int64(usage.Free / (1024 * 1024)), nil
}
