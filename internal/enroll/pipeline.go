package enroll

import (
	"context"
	"encoding/base64"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/twmsh/trackfusion/internal/backend"
	"github.com/twmsh/trackfusion/internal/dao"
	"github.com/twmsh/trackfusion/internal/imagestore"
	"github.com/twmsh/trackfusion/internal/model"
	"github.com/twmsh/trackfusion/internal/queue"
)

// fileItem is one accepted enrollment candidate, as produced by Scan.
type fileItem struct {
	Index    int
	Filename string
}

// feaItem is one detect-worker result, ready for the create-person stage
// (spec.md §4.J "emit {index, filename, personId, feature, quality}").
type feaItem struct {
	Index    int
	Filename string
	PersonID string
	Feature  []float64
	Quality  float64
}

// personItem is one create-person result carrying its back-end-assigned
// face ID, ready for the save-DB stage.
type personItem struct {
	Index    int
	Filename string
	PersonID string
	FaceID   string
}

// Pipeline runs the three-stage bulk-enrollment graph.
type Pipeline struct {
	cfg          Config
	recognition  *backend.RecognitionClient
	images       *imagestore.Store
	persons      *dao.LibraryDAO
	log          *logrus.Entry
}

// New builds a Pipeline.
func New(cfg Config, recognition *backend.RecognitionClient, images *imagestore.Store, persons *dao.LibraryDAO, log *logrus.Entry) *Pipeline {
	return &Pipeline{cfg: cfg, recognition: recognition, images: images, persons: persons, log: log}
}

// Run executes the full pipeline against the given accepted file list and
// blocks until every stage is done (spec.md §4.J).
//
//	FileQueue --(detect x Nd)--> FeaQueue --(create x Nc)--> PersonQueue --(save x1)--> DONE
func (p *Pipeline) Run(ctx context.Context, files []string) [3]model.StageProgress {
	tracker := NewStageTracker(len(files), p.log)

	fileQ := queue.New[fileItem]()
	feaQ := queue.New[feaItem]()
	personQ := queue.New[personItem]()

	for i, f := range files {
		fileQ.Push(fileItem{Index: i, Filename: f})
	}
	fileQ.Close()

	var detectWG, createWG sync.WaitGroup

	detectWorkers := p.cfg.DetectWorkers
	if detectWorkers < 1 {
		detectWorkers = 1
	}
	detectWG.Add(detectWorkers)
	for w := 0; w < detectWorkers; w++ {
		go func(worker int) {
			defer detectWG.Done()
			p.detectLoop(ctx, worker, fileQ, feaQ, tracker.Events())
		}(w)
	}
	go func() {
		detectWG.Wait()
		feaQ.Close()
	}()

	createWorkers := p.cfg.CreateWorkers
	if createWorkers < 1 {
		createWorkers = 1
	}
	createBatch := p.cfg.CreateBatch
	if createBatch < 1 {
		createBatch = 1
	}
	createWG.Add(createWorkers)
	for w := 0; w < createWorkers; w++ {
		go func(worker int) {
			defer createWG.Done()
			p.createLoop(ctx, worker, createBatch, feaQ, personQ, tracker.Events())
		}(w)
	}
	go func() {
		createWG.Wait()
		personQ.Close()
	}()

	saveBatch := p.cfg.SaveBatch
	if saveBatch < 1 {
		saveBatch = 1
	}
	saveDone := make(chan struct{})
	go func() {
		defer close(saveDone)
		p.saveLoop(ctx, saveBatch, personQ, tracker.Events())
	}()

	go tracker.Run()

	select {
	case <-tracker.Done():
	case <-ctx.Done():
	}
	<-saveDone

	return tracker.Snapshot()
}

// detectLoop implements the detect-worker stage: read, base64-encode,
// detect(fast=true), provisional person ID, write the aligned face as
// face-1 (spec.md §4.J "Detect worker").
func (p *Pipeline) detectLoop(ctx context.Context, worker int, in *queue.Queue[fileItem], out *queue.Queue[feaItem], events chan<- StageEvent) {
	for {
		item, ok := in.Pop()
		if !ok {
			return
		}

		succ, fail := p.detectOne(ctx, item, out)
		events <- StageEvent{Stage: 0, Worker: worker, Succ: succ, Fail: fail}
	}
}

func (p *Pipeline) detectOne(ctx context.Context, item fileItem, out *queue.Queue[feaItem]) (succ, fail int) {
	raw, err := os.ReadFile(item.Filename)
	if err != nil {
		p.log.WithError(err).WithField("file", item.Filename).Warn("enrollment: read failed")
		return 0, 1
	}

	resp, err := p.recognition.Detect(ctx, backend.DetectRequest{
		Image: base64.StdEncoding.EncodeToString(raw),
		Fast:  true,
	})
	if err != nil || len(resp.Faces) == 0 {
		p.log.WithError(err).WithField("file", item.Filename).Warn("enrollment: detect failed")
		return 0, 1
	}

	face := resp.Faces[0]
	personID := uuid.NewString()

	aligned, err := base64.StdEncoding.DecodeString(face.Aligned)
	if err != nil {
		p.log.WithError(err).WithField("file", item.Filename).Warn("enrollment: decode aligned face failed")
		return 0, 1
	}
	if err := p.images.WritePersonImage(personID, "1", aligned); err != nil {
		p.log.WithError(err).WithField("file", item.Filename).Warn("enrollment: write face image failed")
		return 0, 1
	}

	out.Push(feaItem{
		Index: item.Index, Filename: item.Filename, PersonID: personID,
		Feature: face.Feature, Quality: face.Quality,
	})
	return 1, 0
}

// createLoop implements the create-person stage: batch up to createBatch
// items, submit one create_persons call, rename each provisional face
// image to its true face ID (spec.md §4.J "Create-person worker").
func (p *Pipeline) createLoop(ctx context.Context, worker, createBatch int, in *queue.Queue[feaItem], out *queue.Queue[personItem], events chan<- StageEvent) {
	for {
		batch, ok := in.PopBatch(createBatch)
		if !ok {
			return
		}

		succ, fail := p.createBatch(ctx, batch, out)
		events <- StageEvent{Stage: 1, Worker: worker, Succ: succ, Fail: fail}
	}
}

func (p *Pipeline) createBatch(ctx context.Context, batch []feaItem, out *queue.Queue[personItem]) (succ, fail int) {
	personIDs := make([]string, len(batch))
	features := make([][]float64, len(batch))
	for i, it := range batch {
		personIDs[i] = it.PersonID
		features[i] = it.Feature
	}

	resp, err := p.recognition.CreatePersons(ctx, backend.CreatePersonsRequest{
		LibraryID: p.cfg.LibraryID, PersonIDs: personIDs, Features: features,
	})
	if err != nil {
		p.log.WithError(err).Warn("enrollment: create_persons failed")
		return 0, len(batch)
	}

	for i, created := range resp.Persons {
		if i >= len(batch) {
			break
		}
		it := batch[i]
		if created.Error != "" {
			fail++
			continue
		}
		if err := p.images.RenamePersonFace(it.PersonID, "1", created.FaceID); err != nil {
			p.log.WithError(err).WithField("person_id", it.PersonID).Warn("enrollment: rename face image failed")
			fail++
			continue
		}
		out.Push(personItem{
			Index: it.Index, Filename: it.Filename, PersonID: it.PersonID, FaceID: created.FaceID,
		})
		succ++
	}
	fail += len(batch) - len(resp.Persons)
	return succ, fail
}

// saveLoop implements the single save-DB worker: batch up to saveBatch
// items, parse filename properties, insert all in one transaction
// (spec.md §4.J "Save-DB worker").
func (p *Pipeline) saveLoop(ctx context.Context, saveBatch int, in *queue.Queue[personItem], events chan<- StageEvent) {
	for {
		batch, ok := in.PopBatch(saveBatch)
		if !ok {
			return
		}

		succ, fail := p.saveBatch(ctx, batch)
		events <- StageEvent{Stage: 2, Worker: 0, Succ: succ, Fail: fail}
	}
}

func (p *Pipeline) saveBatch(ctx context.Context, batch []personItem) (succ, fail int) {
	persons := make([]model.Person, 0, len(batch))
	skipped := 0
	for _, it := range batch {
		props, err := ParsePersonProps(p.cfg, it.Filename)
		if err != nil {
			p.log.WithError(err).WithField("file", it.Filename).Warn("enrollment: parse filename failed")
			skipped++
			continue
		}
		persons = append(persons, model.Person{
			PersonID: it.PersonID, LibraryID: p.cfg.LibraryID, Name: props.Name,
			Gender: props.Sex, IDCard: props.IDCard, Tag: props.Memo,
			FeatureIDs:  []model.FeatureRef{{FaceID: it.FaceID}},
			CoverFaceID: it.FaceID,
		})
	}

	inserted, rowFail, err := p.persons.InsertPersons(ctx, p.cfg.LibraryID, persons, func(pr model.Person, e error) {
		p.log.WithError(e).WithField("person_id", pr.PersonID).Warn("enrollment: insert person row failed")
	})
	if err != nil {
		p.log.WithError(err).Warn("enrollment: save-db transaction failed")
		return 0, len(batch)
	}
	return inserted, rowFail + skipped
}
