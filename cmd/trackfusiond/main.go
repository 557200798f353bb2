// Command trackfusiond is the ingestion-and-fusion worker: it accepts
// multipart track notifications over HTTP, coalesces each track's bursty
// detection stream into a single snapshot, runs 1:N face search, applies
// alarm judgement, persists the result, and fans it out to the live
// dashboard, per spec.md §1 and §5.
package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	appmetrics "github.com/twmsh/trackfusion/infrastructure/metrics"
	"github.com/twmsh/trackfusion/infrastructure/middleware"
	"github.com/twmsh/trackfusion/infrastructure/ratelimit"
	"github.com/twmsh/trackfusion/internal/backend"
	"github.com/twmsh/trackfusion/internal/cache"
	"github.com/twmsh/trackfusion/internal/coalescer"
	"github.com/twmsh/trackfusion/internal/config"
	"github.com/twmsh/trackfusion/internal/dao"
	"github.com/twmsh/trackfusion/internal/dashboard"
	"github.com/twmsh/trackfusion/internal/eventbus"
	"github.com/twmsh/trackfusion/internal/gc"
	"github.com/twmsh/trackfusion/internal/httpserver"
	"github.com/twmsh/trackfusion/internal/imagestore"
	"github.com/twmsh/trackfusion/internal/judge"
	"github.com/twmsh/trackfusion/internal/model"
	"github.com/twmsh/trackfusion/internal/queue"
	"github.com/twmsh/trackfusion/internal/search"
	"github.com/twmsh/trackfusion/internal/wiring"
	"github.com/twmsh/trackfusion/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	log := logger.New(logger.LoggingConfig{
		Level: cfg.LogLevel, Format: cfg.LogFormat, Output: cfg.LogOutput,
	}).WithField("app", "trackfusiond")

	metrics := appmetrics.Init("trackfusiond")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := dao.Open(ctx, cfg.DatabaseDSN, cfg.DBMaxConnections, cfg.DBIdleTimeout)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	libraryDAO := dao.NewLibraryDAO(db)
	trackDAO := dao.NewTrackDAO(db)
	gcDAO := dao.NewGCDAO(db)

	libCache := cache.New(libraryDAO)
	if err := libCache.Refresh(ctx); err != nil {
		log.WithError(err).Fatal("load library cache")
	}

	images := imagestore.New(cfg.ImageRoot, cfg.ImageURLPrefix)

	recognitionHTTP := backend.New(cfg.RecognitionBaseURL, cfg.BackendTimeout)
	recognition := backend.NewRecognitionClient(recognitionHTTP)

	// Fusion pipeline: coalescer -> search -> judge -> eventbus -> dashboard.
	searchIn := queue.New[*model.Snapshot]()
	judgeIn := make(chan *model.Snapshot, 1024)
	busIn := make(chan *model.Snapshot, 1024)

	facePolicy := &coalescer.FacePolicy{
		Images: images, Tracks: trackDAO,
		Fast: cfg.FaceFastMode, QualityMin: cfg.FaceQualityMin, CountMin: cfg.FaceCountMin,
		ReadyD: cfg.FaceReadyDelay, ClearD: cfg.FaceClearDelay,
	}
	vehiclePolicy := &coalescer.VehiclePolicy{
		Images: images, Tracks: trackDAO,
		Fast: cfg.VehicleFastMode, ReadyD: cfg.VehicleReadyDelay, ClearD: cfg.VehicleClearDelay,
	}

	coalescedOut := make(chan *model.Snapshot, 1024)
	faceCoalescer := coalescer.New(facePolicy, libraryDAO, coalescedOut, log.WithField("component", "coalescer.face"))
	vehicleCoalescer := coalescer.New(vehiclePolicy, libraryDAO, coalescedOut, log.WithField("component", "coalescer.vehicle"))
	faceCoalescer.Start()
	vehicleCoalescer.Start()

	go func() {
		for snap := range coalescedOut {
			searchIn.Push(snap)
		}
	}()

	searchPool := search.New(recognition, libCache, cfg.SearchBatch, searchIn, judgeIn, log.WithField("component", "search"))
	searchPool.Start(cfg.SearchWorkers)

	judgeWorker := judge.New(&wiring.Persons{DAO: libraryDAO, Cache: libCache}, trackDAO, cfg.WLAlarm, busIn, log.WithField("component", "judge"))
	go judgeWorker.Run(ctx, judgeIn)

	bus := eventbus.New()
	dashboardIn := bus.Subscribe("dashboard")
	go bus.Run(busIn)

	window := dashboard.New(cfg.DashboardWindowBatch)
	if err := window.Seed(ctx, trackDAO); err != nil {
		log.WithError(err).Warn("seed dashboard window")
	}
	hub := dashboard.NewHub(window, log.WithField("component", "dashboard.hub"))
	publisher := dashboard.NewPublisher(window, hub, dashboardIn)
	go publisher.Run()

	collector := gc.New(gcDAO, images, cfg.ImageRoot, cfg.GCAvailSizeMB, cfg.GCCleanFTBatch, cfg.GCCleanCTBatch, log.WithField("component", "gc"))
	collector.Start(cfg.GCIntervalMinutes)

	ready := true
	server := httpserver.New(cfg.ListenAddr, httpserver.Config{
		FaceCoalescer:    faceCoalescer,
		VehicleCoalescer: vehicleCoalescer,
		Images:           images,
		Dashboard:        hub,
		Ready:            &ready,
		BodyLimitBytes:   32 << 20,
		RateLimit: ratelimit.RateLimitConfig{
			RequestsPerSecond: ifEnabled(cfg.RateLimitEnabled, cfg.RateLimitRequests),
			Burst:             cfg.RateLimitBurst,
			Window:            time.Second,
		},
		CORS:    &middleware.CORSConfig{AllowedOrigins: []string{"*"}},
		Log:     log,
		Metrics: metrics,
	})

	shutdown := middleware.NewGracefulShutdown(nil, 30*time.Second)
	shutdown.OnShutdown(func() {
		ready = false
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http server shutdown")
		}
		collector.Stop()
		cancel()
	})
	shutdown.ListenForSignals()

	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("trackfusiond listening")
		if err := server.ListenAndServe(); err != nil {
			log.WithError(err).Error("http server failed")
			shutdown.Shutdown()
		}
	}()

	shutdown.Wait()
	log.Info("trackfusiond stopped")
}

// ifEnabled returns rps when rate limiting is enabled, or 0 (which
// httpserver.New treats as "no rate limiting") otherwise.
func ifEnabled(enabled bool, rps float64) float64 {
	if !enabled {
		return 0
	}
	return rps
}
