// Package search runs the batched 1:N face search worker pool of
// spec.md §4.E: a fixed-size pool drains up to search_batch snapshots at a
// time from the judgement-bound queue, calls the recognition back-end once
// per batch, and fills match results before forwarding downstream.
package search

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/twmsh/trackfusion/internal/backend"
	"github.com/twmsh/trackfusion/internal/model"
	"github.com/twmsh/trackfusion/internal/queue"
)

// Libraries is the subset of internal/cache.Cache this package needs,
// narrowed to an interface so tests don't require a live database.
type Libraries interface {
	AutoMatchLibraryIDs() []string
	Library(id string) (model.Library, bool)
}

const (
	// searchTop and searchThreshold are the fixed parameters of every
	// search call, per spec.md §4.E's request shape: "top=[1], threshold=[0]".
	searchTop       = 1
	searchThreshold = 0
)

// Pool is a fixed-size worker pool consuming an *queue.Queue[*model.Snapshot]
// and producing judged-bound snapshots on out.
type Pool struct {
	client    *backend.RecognitionClient
	libraries Libraries
	batchSize int
	in        *queue.Queue[*model.Snapshot]
	out       chan<- *model.Snapshot
	log       *logrus.Entry
}

// New constructs a search worker pool.
func New(client *backend.RecognitionClient, libraries Libraries, batchSize int, in *queue.Queue[*model.Snapshot], out chan<- *model.Snapshot, log *logrus.Entry) *Pool {
	return &Pool{client: client, libraries: libraries, batchSize: batchSize, in: in, out: out, log: log}
}

// Start launches n worker goroutines; each exits when in is closed and
// drained.
func (p *Pool) Start(n int) {
	for i := 0; i < n; i++ {
		go p.worker(i)
	}
}

func (p *Pool) worker(id int) {
	log := p.log.WithField("search_worker", id)
	for {
		batch, ok := p.in.PopBatch(p.batchSize)
		if !ok {
			return
		}
		p.processBatch(context.Background(), log, batch)
	}
}

// processBatch implements spec.md §4.E's fill/error rules: snapshots
// without a feature vector pass through unmatched; the rest go into one
// search call; a failed call still marks the whole batch matched=true with
// no match, since judgement treats that identically to "no match found".
func (p *Pool) processBatch(ctx context.Context, log *logrus.Entry, batch []*model.Snapshot) {
	searchable := make([]*model.Snapshot, 0, len(batch))
	for _, snap := range batch {
		if len(snap.Features) == 0 {
			snap.Matched = true
			p.forward(snap)
			continue
		}
		searchable = append(searchable, snap)
	}
	if len(searchable) == 0 {
		return
	}

	featureSets := make([][]float64, len(searchable))
	for i, snap := range searchable {
		featureSets[i] = decodeFirstFeature(snap.Features[0])
	}

	resp, err := p.client.Search(ctx, backend.SearchRequest{
		LibraryIDs: p.libraries.AutoMatchLibraryIDs(),
		Top:        []int{searchTop},
		Threshold:  []float64{searchThreshold},
		Features:   featureSets,
	})
	if err != nil {
		log.WithError(err).Warn("search call failed, batch passes through unmatched")
		for _, snap := range searchable {
			snap.Matched = true
			snap.Features = nil
			p.forward(snap)
		}
		return
	}

	for i, snap := range searchable {
		snap.Matched = true
		snap.Features = nil
		if i < len(resp.Matches) && resp.Matches[i].Found {
			m := resp.Matches[i]
			lib, _ := p.libraries.Library(m.LibraryID)
			snap.MatchPerson = &model.MatchPerson{
				PersonID:  m.PersonID,
				Score:     m.Score,
				LibraryID: m.LibraryID,
				LibraryBW: lib.BWFlag,
			}
		}
		p.forward(snap)
	}
}

func (p *Pool) forward(snap *model.Snapshot) {
	select {
	case p.out <- snap:
	default:
		// out is sized generously by the caller (judgement queue); a full
		// channel here indicates the judgement stage has stalled, which is
		// logged before the worker blocks on the send.
		p.log.WithField("track_id", snap.TrackID).Warn("judgement queue full, blocking")
		p.out <- snap
	}
}

// decodeFirstFeature decodes a base64 feature blob (little-endian float64s,
// the wire shape fed to model.Detection.Feature by intake) into the
// recognition back-end's []float64 request shape.
func decodeFirstFeature(b64 string) []float64 {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil || len(raw)%8 != 0 {
		return nil
	}
	out := make([]float64, len(raw)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8 : i*8+8]))
	}
	return out
}
