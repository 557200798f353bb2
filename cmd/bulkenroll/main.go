// Command bulkenroll walks a directory of face photos and registers each
// one as a person in a face library, per spec.md §4.J: scan, detect,
// create-person, save-DB, with per-stage worker pools and progress
// reporting. In test mode it only reports what would be enrolled.
package main

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/twmsh/trackfusion/internal/backend"
	"github.com/twmsh/trackfusion/internal/config"
	"github.com/twmsh/trackfusion/internal/dao"
	"github.com/twmsh/trackfusion/internal/enroll"
	"github.com/twmsh/trackfusion/internal/imagestore"
	"github.com/twmsh/trackfusion/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load configuration:", err)
		os.Exit(1)
	}
	if err := cfg.ValidateEnroll(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level: cfg.LogLevel, Format: cfg.LogFormat, Output: cfg.LogOutput,
	}).WithField("app", "bulkenroll")

	filenameRegex, err := regexp.Compile(cfg.EnrollFilenameRegex)
	if err != nil {
		log.WithError(err).Fatal("invalid ENROLL_FILENAME_REGEX")
	}

	scanCfg := enroll.Config{
		Dir:                cfg.EnrollDir,
		Extensions:         cfg.EnrollExtensions,
		FilenameRegex:      filenameRegex,
		CaptureGroups:      cfg.EnrollCaptureGroups,
		SizeThresholdBytes: cfg.EnrollSizeThresholdBytes,
		LibraryID:          cfg.EnrollLibraryID,
		DetectWorkers:      cfg.EnrollDetectWorkers,
		CreateWorkers:      cfg.EnrollCreateWorkers,
		CreateBatch:        cfg.EnrollCreateBatch,
		SaveBatch:          cfg.EnrollSaveBatch,
		TestMode:           cfg.EnrollTestMode,
	}

	result, err := enroll.Scan(scanCfg)
	if err != nil {
		log.WithError(err).Fatal("scan enrollment directory")
	}
	log.WithFields(logrus.Fields{
		"total": result.TotalFiles, "accepted": len(result.Accepted),
	}).Info("enrollment scan complete")

	if scanCfg.TestMode {
		fmt.Printf("scanned %d files, %d accepted\n", result.TotalFiles, len(result.Accepted))
		fmt.Println("sample matched:")
		for _, name := range result.Matched {
			fmt.Println("  ", name)
		}
		fmt.Println("sample unmatched:")
		for _, name := range result.Unmatched {
			fmt.Println("  ", name)
		}
		os.Exit(0)
	}

	if len(result.Accepted) == 0 {
		log.Warn("no files accepted, nothing to enroll")
		os.Exit(0)
	}

	ctx := context.Background()

	db, err := dao.Open(ctx, cfg.DatabaseDSN, cfg.DBMaxConnections, cfg.DBIdleTimeout)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	images := imagestore.New(cfg.ImageRoot, cfg.ImageURLPrefix)
	recognitionHTTP := backend.New(cfg.RecognitionBaseURL, cfg.BackendTimeout)
	recognition := backend.NewRecognitionClient(recognitionHTTP)
	persons := dao.NewLibraryDAO(db)

	pipeline := enroll.New(scanCfg, recognition, images, persons, log)
	progress := pipeline.Run(ctx, result.Accepted)

	exitCode := 0
	for _, stage := range progress {
		log.WithFields(logrus.Fields{
			"stage": stage.Label, "count": stage.Count, "succ": stage.Succ, "fail": stage.Fail,
		}).Info("enrollment stage finished")
	}
	if final := progress[len(progress)-1]; final.Fail > 0 && final.Succ == 0 {
		exitCode = 1
	}
	os.Exit(exitCode)
}
