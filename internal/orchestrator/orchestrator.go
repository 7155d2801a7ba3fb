// Package orchestrator drives a single job through the full
// probe/classify/plan/encode/replace state machine and persists it after
// every transition so a crash resumes from the most-advanced saved state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/IONIQ6000/av1-doc-sub000/internal/classify"
	"github.com/IONIQ6000/av1-doc-sub000/internal/encoder"
	"github.com/IONIQ6000/av1-doc-sub000/internal/jobstore"
	"github.com/IONIQ6000/av1-doc-sub000/internal/logging"
	"github.com/IONIQ6000/av1-doc-sub000/internal/probe"
	"github.com/IONIQ6000/av1-doc-sub000/internal/quality"
	"github.com/IONIQ6000/av1-doc-sub000/internal/sidecar"
	"github.com/IONIQ6000/av1-doc-sub000/internal/testclip"
)

// Deps bundles everything the orchestrator needs to advance a job that
// doesn't live on the job record itself.
type Deps struct {
	JobStateDir     string
	FFmpegPath      string
	ProbeBinPath    string
	Encoder         quality.EncoderVariant
	MaxSizeRatio    float64
	ForceReencode   bool
	TestClipEnabled bool
	Approver        testclip.Approver
	TmpDir          string
	EncodeTimeout   time.Duration
	Log             *logging.Logger
}

// Run advances job through as many state-machine transitions as it can in
// one call, which is always all the way to a terminal state: the
// orchestrator runs a job to completion rather than yielding mid-pipeline.
// The returned error is only non-nil when the job's own state could not be
// persisted; job-scoped failures are recorded on job itself and result in a
// nil error, matching the state machine's "every job-scoped error becomes a
// terminal status" design. report is the already-probed metadata for
// job.SourcePath, taken as a parameter rather than probed internally so the
// state machine itself can be driven with a fixture report in tests.
func Run(ctx context.Context, job *jobstore.Job, report *probe.Report, deps Deps) error {
	videoStream := report.VideoStream()
	if videoStream == nil {
		return Terminal(job, deps, jobstore.StatusSkipped, "not a video")
	}
	if report.HasAV1() {
		return Terminal(job, deps, jobstore.StatusSkipped, "already av1")
	}

	cacheProbeMetadata(job, videoStream, report)

	webDecision := classify.ClassifyWebSource(job.SourcePath, report)
	sourceClass := classify.ClassifyQuality(job.SourcePath, report)
	job.Tier = sourceClass.Tier

	if sourceClass.Tier == classify.WebDl && classify.IsModernVideoCodec(videoStream.CodecName) && !deps.ForceReencode {
		return Terminal(job, deps, jobstore.StatusSkipped, "already modern")
	}

	params := quality.Plan(sourceClass.Tier, report, deps.Encoder, deps.Log)
	job.Params = &params

	if testclip.ShouldExtract(sourceClass.Tier) && deps.TestClipEnabled {
		approver := deps.Approver
		if approver == nil {
			approver = testclip.AutoApprove{}
		}
		outcome, err := testclip.Run(ctx, deps.FFmpegPath, job.SourcePath, deps.TmpDir, report, webDecision, params, approver, deps.EncodeTimeout)
		if err != nil {
			return Terminal(job, deps, jobstore.StatusFailed, fmt.Sprintf("test clip failed: %v", err))
		}
		if outcome.Rejected {
			return Terminal(job, deps, jobstore.StatusSkipped, "user rejected test clip")
		}
		params = outcome.FinalParams
		job.Params = &params
	}

	tempOutputPath := tempOutputPath(job.SourcePath)
	job.OutputPath = tempOutputPath
	job.MarkStarted()
	if err := jobstore.Save(job, deps.JobStateDir); err != nil {
		return fmt.Errorf("save job after start: %w", err)
	}

	argv := encoder.BuildArgv(job.SourcePath, tempOutputPath, report, webDecision, params)
	if _, err := encoder.Execute(ctx, deps.FFmpegPath, argv, deps.EncodeTimeout); err != nil {
		os.Remove(tempOutputPath)
		return Terminal(job, deps, jobstore.StatusFailed, encodeFailureReason(err))
	}

	outputInfo, err := os.Stat(tempOutputPath)
	if err != nil || outputInfo.Size() == 0 {
		os.Remove(tempOutputPath)
		return Terminal(job, deps, jobstore.StatusFailed, "transcoded output empty")
	}
	job.NewSize = outputInfo.Size()

	if float64(job.NewSize) > float64(job.OriginalSize)*deps.MaxSizeRatio {
		if err := sidecar.WriteSkipMarker(job.SourcePath); err != nil {
			deps.Log.Warn("write skip marker for %s: %v", job.SourcePath, err)
		}
		os.Remove(tempOutputPath)
		return Terminal(job, deps, jobstore.StatusSkipped, "size gate")
	}

	if err := atomicReplace(job.SourcePath, tempOutputPath); err != nil {
		os.Remove(tempOutputPath)
		return Terminal(job, deps, jobstore.StatusFailed, fmt.Sprintf("replace failed: %v", err))
	}

	job.OutputPath = job.SourcePath
	job.MarkTerminal(jobstore.StatusSuccess, "")
	if err := sidecar.WriteWhy(job.SourcePath, "success"); err != nil {
		deps.Log.Warn("write why file for %s: %v", job.SourcePath, err)
	}
	if err := sidecar.WriteReport(job.SourcePath, buildReport(job, report, sourceClass, params)); err != nil {
		deps.Log.Warn("write conversion report for %s: %v", job.SourcePath, err)
	}
	if err := jobstore.Save(job, deps.JobStateDir); err != nil {
		return fmt.Errorf("save job after success: %w", err)
	}

	return nil
}

// Terminal records a terminal status and reason on job, writes the reason
// sidecar before the status is visible in the job store, and persists.
// Exported so callers that fail a job before Run is even reached (e.g. a
// probe failure in the daemon loop) can reuse the same persistence contract.
func Terminal(job *jobstore.Job, deps Deps, status jobstore.Status, reason string) error {
	job.MarkTerminal(status, reason)
	if err := sidecar.WriteWhy(job.SourcePath, reason); err != nil {
		deps.Log.Warn("write why file for %s: %v", job.SourcePath, err)
	}
	if err := jobstore.Save(job, deps.JobStateDir); err != nil {
		return fmt.Errorf("save terminal job state: %w", err)
	}
	return nil
}

func cacheProbeMetadata(job *jobstore.Job, videoStream *probe.Stream, report *probe.Report) {
	job.VideoCodec = videoStream.CodecName
	job.VideoWidth = videoStream.Width
	job.VideoHeight = videoStream.Height
	job.VideoBitrate = videoStream.BitRate
	job.FrameRateExpr = videoStream.AvgFrameRate
	job.IsWebLike = classify.ClassifyWebSource(job.SourcePath, report).Class == classify.WebLike
}

func encodeFailureReason(err error) string {
	var failed *encoder.EncodeFailedError
	if errors.As(err, &failed) {
		return fmt.Sprintf("encode exit %d", failed.ExitCode)
	}
	var timedOut *encoder.TimeoutError
	if errors.As(err, &timedOut) {
		return fmt.Sprintf("encode timeout after %ds", timedOut.Seconds)
	}
	return fmt.Sprintf("encode failed: %v", err)
}

// tempOutputPath returns the temp output location for sourcePath, beside
// the source so the final rename stays within one filesystem.
func tempOutputPath(sourcePath string) string {
	dir := filepath.Dir(sourcePath)
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+".tmp.av1.mkv")
}

// backupPath returns the path the original file is renamed to during
// atomic replacement.
func backupPath(sourcePath string) string {
	dir := filepath.Dir(sourcePath)
	base := filepath.Base(sourcePath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, stem+".orig"+ext)
}

// atomicReplace renames sourcePath to its backup path, then renames
// tempOutputPath onto sourcePath. If the second rename fails, it attempts to
// restore the backup to sourcePath before returning the error. The backup is
// retained on success; cleanup is out of scope.
func atomicReplace(sourcePath, tempOutputPath string) error {
	if _, err := os.Stat(sourcePath); err != nil {
		return fmt.Errorf("source missing before replace: %w", err)
	}

	backup := backupPath(sourcePath)
	if err := os.Rename(sourcePath, backup); err != nil {
		return fmt.Errorf("backup original: %w", err)
	}

	if err := os.Rename(tempOutputPath, sourcePath); err != nil {
		if restoreErr := os.Rename(backup, sourcePath); restoreErr != nil {
			return fmt.Errorf("promote temp output: %w (restore also failed: %v)", err, restoreErr)
		}
		return fmt.Errorf("promote temp output: %w (original restored)", err)
	}

	if _, err := os.Stat(sourcePath); err != nil {
		return fmt.Errorf("verify replaced file: %w", err)
	}

	return nil
}

// buildReport renders a plain-text summary of the completed job for the
// conversion report sidecar.
func buildReport(job *jobstore.Job, report *probe.Report, sourceClass classify.SourceClassification, params quality.EncodingParams) string {
	var b strings.Builder

	fmt.Fprintf(&b, "AV1 conversion report\n")
	fmt.Fprintf(&b, "=====================\n\n")
	fmt.Fprintf(&b, "Job ID:        %s\n", job.ID)
	fmt.Fprintf(&b, "Source:        %s\n", job.SourcePath)
	fmt.Fprintf(&b, "Tier:          %s (confidence %.2f)\n", sourceClass.Tier, sourceClass.Confidence)
	for _, reason := range sourceClass.Reasons {
		fmt.Fprintf(&b, "  - %s\n", reason)
	}
	fmt.Fprintf(&b, "\n")

	if vs := report.VideoStream(); vs != nil {
		fmt.Fprintf(&b, "Source video:  %s %dx%d %s\n", vs.CodecName, vs.Width, vs.Height, vs.PixFmt)
	}
	fmt.Fprintf(&b, "Encoder:       %s\n", params.Encoder)
	fmt.Fprintf(&b, "CRF / preset:  %d / %d\n", params.CRF, params.Preset)
	fmt.Fprintf(&b, "Pixel format:  %s\n", params.PixelFormat)
	fmt.Fprintf(&b, "\n")

	fmt.Fprintf(&b, "Original size: %d bytes\n", job.OriginalSize)
	fmt.Fprintf(&b, "New size:      %d bytes\n", job.NewSize)
	if job.OriginalSize > 0 {
		fmt.Fprintf(&b, "Ratio:         %.2f%%\n", float64(job.NewSize)/float64(job.OriginalSize)*100)
	}

	return b.String()
}
