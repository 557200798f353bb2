package coalescer

import (
	"context"
	"time"

	"github.com/twmsh/trackfusion/internal/model"
)

// activationTimeout bounds a single batch handler activation (camera
// lookup + image writes + DB round-trip), so a hung back-end never wedges
// an entry's drain loop forever.
const activationTimeout = 15 * time.Second

// processBatch runs the per-batch handler algorithm of spec.md §4.B steps
// 1-7 for one drain-loop activation, holding no lock across it. It returns
// true when the track should be evicted from the coalescer map.
func (c *Coalescer) processBatch(e *entry, batch []event) (evicted bool) {
	track := e.track
	log := c.log.WithField("track_id", track.ID)

	var hadTimeout, hadAppendEvent bool
	for _, ev := range batch {
		switch ev.kind {
		case eventClear:
			evicted = true
		case eventReadinessTimeout:
			hadTimeout = true
		case eventAppend:
			hadAppendEvent = true
		}
	}

	if track.Invalid {
		// sticky: an invalid track never retries persistence; it just
		// waits out its clean timer (spec.md §3 "invalid ... sticky-set
		// on fatal persistence failure"; §4.B "a track whose clean timer
		// fires in invalid state is silently evicted").
		return evicted
	}

	ctx, cancel := context.WithTimeout(context.Background(), activationTimeout)
	defer cancel()

	// Step 1: fold every append event in the batch, in arrival order.
	var fold foldResult
	for _, ev := range batch {
		if ev.kind == eventAppend && ev.notif != nil {
			r := foldNotification(track, ev.notif)
			fold.detectionsAdded = fold.detectionsAdded || r.detectionsAdded
			fold.backgroundChanged = fold.backgroundChanged || r.backgroundChanged
		}
	}

	// Step 2: best-effort camera resolution.
	cam, err := c.cameras.GetCamera(ctx, track.SourceID)
	if err != nil {
		log.WithError(err).Debug("camera lookup failed, proceeding without camera info")
		cam = nil
	}

	wpOld := track.WP

	switch {
	case !track.Persisted:
		// Step 3: first save.
		if err := c.policy.WriteImages(track, wpOld); err != nil {
			log.WithError(err).Error("initial image persistence failed, marking track invalid")
			track.Invalid = true
			return evicted
		}
		if err := c.policy.InsertRow(ctx, track); err != nil {
			log.WithError(err).Error("initial row insert failed, marking track invalid")
			track.Invalid = true
			return evicted
		}
		track.Persisted = true

	case fold.detectionsAdded || fold.backgroundChanged:
		// Step 4: incremental save; failures are logged and retried on a
		// later append, per spec.md §4.B "Failure semantics".
		if err := c.policy.WriteImages(track, wpOld); err != nil {
			log.WithError(err).Warn("incremental image persistence failed, will retry on next append")
		} else if err := c.policy.UpdateRow(ctx, track); err != nil {
			log.WithError(err).Warn("incremental row update failed, will retry on next append")
		}
	}

	// Step 5: re-evaluate readiness — triggered by an append or a
	// readiness-timer event in this batch (spec.md §4.B step 5).
	if (hadAppendEvent || hadTimeout) && !track.Ready {
		track.Ready = c.policy.IsReady(track, hadTimeout)
	}

	// Step 6: emit on the (!persisted or !ready) -> (persisted and ready)
	// transition, at most once per track lifetime.
	if track.Persisted && track.Ready && !track.Invalid && !track.Published {
		snap := c.policy.BuildSnapshot(track, cam)
		track.Published = true
		select {
		case c.out <- snap:
		case <-ctx.Done():
			log.Warn("snapshot publish dropped: activation context expired")
		}
	}

	// Step 7: drop transient byte buffers for everything already durable.
	releaseTransients(track)

	return evicted
}

// releaseTransients drops in-memory byte buffers for detections already
// covered by the write pointer and for the background image, so a
// long-resident track doesn't pin crop bytes in memory between batches
// (spec.md §4.B step 7; §9 "transient byte buffers... relinquished after
// publication" generalized to "after persistence").
func releaseTransients(track *model.Track) {
	for i := range track.Detections {
		if track.Detections[i].Index > track.WP {
			continue
		}
		track.Detections[i].SmallImage = nil
		track.Detections[i].LargeImage = nil
	}
	if track.Background != nil {
		track.Background.Image = nil
	}
}
