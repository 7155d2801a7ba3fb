// Command av1d is the transcoding daemon: it scans configured library
// roots, classifies and plans AV1 encodes, and drives them to completion.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/IONIQ6000/av1-doc-sub000/internal/config"
	"github.com/IONIQ6000/av1-doc-sub000/internal/encoder"
	"github.com/IONIQ6000/av1-doc-sub000/internal/ffbinary"
	"github.com/IONIQ6000/av1-doc-sub000/internal/jobstore"
	"github.com/IONIQ6000/av1-doc-sub000/internal/logging"
	"github.com/IONIQ6000/av1-doc-sub000/internal/orchestrator"
	"github.com/IONIQ6000/av1-doc-sub000/internal/probe"
	"github.com/IONIQ6000/av1-doc-sub000/internal/quality"
	"github.com/IONIQ6000/av1-doc-sub000/internal/resources"
	"github.com/IONIQ6000/av1-doc-sub000/internal/scan"
	"github.com/IONIQ6000/av1-doc-sub000/internal/testclip"
)

const encodeTimeout = 6 * time.Hour

func main() {
	configPath := flag.String("config", "/etc/av1d/config.json", "path to the daemon's JSON config file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	if *verbose {
		cfg.Verbose = true
	}

	level := logging.LevelInfo
	if cfg.Verbose {
		level = logging.LevelDebug
	} else if env := os.Getenv("AV1D_LOG_LEVEL"); env != "" {
		level = logging.LevelFromString(env)
	}
	log := logging.New(level)

	log.Info("config loaded from %s", *configPath)
	log.Info("library roots: %d", len(cfg.LibraryRoots))
	for i, root := range cfg.LibraryRoots {
		log.Info("  [%d] %s", i+1, root)
	}

	if err := os.MkdirAll(cfg.JobStateDir, 0755); err != nil {
		log.Error("create job state dir %s: %v", cfg.JobStateDir, err)
		os.Exit(1)
	}

	ffmpegPath := cfg.EncoderBin
	if ffmpegPath == "" {
		ffmpegPath, err = ffbinary.Ensure(cfg.FFmpegInstallDir, cfg.FFmpegURL, log)
		if err != nil {
			log.Error("ensure ffmpeg: %v", err)
			os.Exit(1)
		}
	}

	probeBinPath := cfg.ProbeBin
	if probeBinPath == "" {
		probeBinPath = ffbinary.DeriveProbePath(ffmpegPath)
	}

	preferred := quality.EncoderVariant(cfg.PreferredEncoder)
	chosenEncoder, err := encoder.DiscoverEncoder(ffmpegPath, preferred)
	if err != nil {
		log.Error("discover encoder: %v", err)
		os.Exit(1)
	}
	log.Info("using encoder variant %s", chosenEncoder)

	tmpDir := filepath.Join(cfg.JobStateDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		log.Error("create temp dir %s: %v", tmpDir, err)
		os.Exit(1)
	}

	deps := orchestrator.Deps{
		JobStateDir:     cfg.JobStateDir,
		FFmpegPath:      ffmpegPath,
		ProbeBinPath:    probeBinPath,
		Encoder:         chosenEncoder,
		MaxSizeRatio:    cfg.MaxSizeRatio,
		ForceReencode:   cfg.ForceReencode,
		TestClipEnabled: cfg.TestClipEnabled,
		Approver:        testclip.AutoApprove{},
		TmpDir:          tmpDir,
		EncodeTimeout:   encodeTimeout,
		Log:             log,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runLoop(ctx, cfg, deps, log)
	log.Info("shutdown complete")
}

func runLoop(ctx context.Context, cfg config.Config, deps orchestrator.Deps, log *logging.Logger) {
	interval := time.Duration(cfg.ScanIntervalSec) * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		runCycle(ctx, cfg, deps, log)

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func runCycle(ctx context.Context, cfg config.Config, deps orchestrator.Deps, log *logging.Logger) {
	snap := resources.Sample(200*time.Millisecond, cfg.JobStateDir)
	log.Debug("host snapshot: cpu=%.1f%% mem=%.1f%% disk=%.1f%%", snap.CPUPercent, snap.MemPercent, snap.DiskPercent)

	existingJobs, err := jobstore.LoadAll(cfg.JobStateDir)
	if err != nil {
		log.Error("load jobs: %v", err)
		return
	}

	for _, root := range cfg.LibraryRoots {
		results, err := scan.Walk(root, cfg.MinBytes, log)
		if err != nil {
			log.Warn("scan %s: %v", root, err)
			continue
		}

		for _, result := range results {
			if !result.Candidate {
				continue
			}
			if jobstore.FindBySourcePath(existingJobs, result.Path) != nil {
				continue
			}
			job := jobstore.New(result.Path)
			job.OriginalSize = result.Size
			if err := jobstore.Save(job, cfg.JobStateDir); err != nil {
				log.Error("save new job for %s: %v", result.Path, err)
				continue
			}
			existingJobs = append(existingJobs, job)
			log.Info("new candidate: %s (%d bytes)", result.Path, result.Size)
		}
	}

	var pending *jobstore.Job
	for _, job := range existingJobs {
		if job.Status == jobstore.StatusPending {
			pending = job
			break
		}
	}
	if pending == nil {
		log.Debug("no pending jobs this cycle")
		return
	}

	log.Info("processing job %s: %s", pending.ID, pending.SourcePath)

	report, err := probe.Run(deps.ProbeBinPath, pending.SourcePath)
	if err != nil {
		if terminalErr := orchestrator.Terminal(pending, deps, jobstore.StatusFailed, fmt.Sprintf("probe failed: %v", err)); terminalErr != nil {
			log.Error("persist probe failure for %s: %v", pending.SourcePath, terminalErr)
		}
		return
	}

	if err := orchestrator.Run(ctx, pending, report, deps); err != nil {
		log.Error("orchestrator error for %s: %v", pending.SourcePath, err)
		return
	}
	log.Info("job %s finished: %s (%s)", pending.ID, pending.Status, pending.Reason)
}
