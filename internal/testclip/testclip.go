// Package testclip implements the pre-encode quality-gate workflow: for
// Remux-tier sources only, a short clip is extracted, encoded with the
// proposed parameters, and reviewed before the full encode proceeds.
package testclip

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/IONIQ6000/av1-doc-sub000/internal/classify"
	"github.com/IONIQ6000/av1-doc-sub000/internal/encoder"
	"github.com/IONIQ6000/av1-doc-sub000/internal/probe"
	"github.com/IONIQ6000/av1-doc-sub000/internal/quality"
)

// clipDuration is fixed at the middle of the 30-60 second range called for
// by the workflow.
const clipDuration = 45.0

// fallbackStart is used when the source's DURATION tag cannot be read or
// parsed.
const fallbackStart = 300.0

// maxIterations bounds the lower-crf/slower-preset refinement loop so a
// chain of refinement requests can never run the workflow forever.
const maxIterations = 5

// DecisionKind is the reviewer's verdict on a test clip.
type DecisionKind int

const (
	Approved DecisionKind = iota
	LowerCrf
	SlowerPreset
	Rejected
)

// Decision is the reviewer's response to a test clip. Amount is only
// meaningful for LowerCrf and SlowerPreset.
type Decision struct {
	Kind   DecisionKind
	Amount int
}

// Approver reviews an encoded test clip and returns a decision. The default
// implementation in this package auto-approves; a daemon operator can supply
// an interactive or policy-driven Approver instead.
type Approver interface {
	Review(clipPath string, iteration int) Decision
}

// AutoApprove always approves on the first pass, matching the daemon's
// unattended default.
type AutoApprove struct{}

func (AutoApprove) Review(string, int) Decision {
	return Decision{Kind: Approved}
}

// ShouldExtract reports whether the test clip workflow applies to tier; only
// Remux-tier sources go through it.
func ShouldExtract(tier classify.QualityTier) bool {
	return tier == classify.Remux
}

// Duration returns the fixed test clip length in seconds.
func Duration() float64 {
	return clipDuration
}

// SelectStart picks the clip start time: 25% into the source's duration tag
// when present and parseable, else a fixed 5-minute offset.
func SelectStart(report *probe.Report) float64 {
	if report == nil || report.Format.Tags == nil {
		return fallbackStart
	}
	raw, ok := report.Format.Tags["DURATION"]
	if !ok {
		raw, ok = report.Format.Tags["duration"]
	}
	if !ok {
		return fallbackStart
	}
	duration, err := ParseDuration(raw)
	if err != nil {
		return fallbackStart
	}
	return duration * 0.25
}

// ParseDuration accepts "HH:MM:SS.mmm" or a plain seconds value.
func ParseDuration(s string) (float64, error) {
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) != 3 {
			return 0, fmt.Errorf("malformed duration %q", s)
		}
		hours, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return 0, err
		}
		minutes, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return 0, err
		}
		seconds, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return 0, err
		}
		return hours*3600 + minutes*60 + seconds, nil
	}
	return strconv.ParseFloat(s, 64)
}

// AdjustParameters applies a reviewer's refinement request to params,
// returning a new EncodingParams. CRF never drops below 10; preset never
// drops below 0.
func AdjustParameters(params quality.EncodingParams, decision Decision) quality.EncodingParams {
	adjusted := params
	switch decision.Kind {
	case LowerCrf:
		adjusted.CRF = saturatingSub(params.CRF, decision.Amount, 10)
	case SlowerPreset:
		adjusted.Preset = saturatingSub(params.Preset, decision.Amount, 0)
	}
	return adjusted
}

func saturatingSub(value, amount, floor int) int {
	result := value - amount
	if result < floor {
		return floor
	}
	return result
}

// Outcome is the result of running the full test-clip loop.
type Outcome struct {
	FinalParams quality.EncodingParams
	Iterations  int
	Rejected    bool
}

// Run extracts the test clip once, then repeatedly encodes it with the
// current parameters and asks approver to review, adjusting parameters on
// LowerCrf/SlowerPreset feedback, until Approved or Rejected. Exhausting the
// iteration cap without either is itself treated as Rejected, so a chain of
// non-converging refinement requests can never fall through to a full encode.
func Run(ctx context.Context, ffmpegPath, sourcePath, tmpDir string, report *probe.Report, webDecision classify.WebSourceDecision, params quality.EncodingParams, approver Approver, timeout time.Duration) (Outcome, error) {
	start := SelectStart(report)
	duration := Duration()
	clipPath := tmpDir + "/test_clip.mkv"

	extractArgv := encoder.BuildTestClipExtractArgs(sourcePath, clipPath, start, duration)
	if _, err := encoder.Execute(ctx, ffmpegPath, extractArgv, timeout); err != nil {
		return Outcome{}, fmt.Errorf("extract test clip: %w", err)
	}

	current := params
	for iteration := 1; iteration <= maxIterations; iteration++ {
		encodedPath := fmt.Sprintf("%s/test_clip_encoded_%d.mkv", tmpDir, iteration)
		argv := encoder.BuildArgv(clipPath, encodedPath, report, webDecision, current)
		if _, err := encoder.Execute(ctx, ffmpegPath, argv, timeout); err != nil {
			return Outcome{}, fmt.Errorf("encode test clip (iteration %d): %w", iteration, err)
		}

		decision := approver.Review(encodedPath, iteration)
		switch decision.Kind {
		case Approved:
			return Outcome{FinalParams: current, Iterations: iteration}, nil
		case Rejected:
			return Outcome{FinalParams: current, Iterations: iteration, Rejected: true}, nil
		default:
			current = AdjustParameters(current, decision)
		}
	}

	return Outcome{FinalParams: current, Iterations: maxIterations, Rejected: true}, nil
}
