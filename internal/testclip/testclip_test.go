package testclip

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/IONIQ6000/av1-doc-sub000/internal/classify"
	"github.com/IONIQ6000/av1-doc-sub000/internal/probe"
	"github.com/IONIQ6000/av1-doc-sub000/internal/quality"
)

// fakeFFmpeg writes an executable shell script that always succeeds,
// standing in for ffmpeg in Run tests.
func fakeFFmpeg(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	return path
}

func TestShouldExtractOnlyForRemux(t *testing.T) {
	if !ShouldExtract(classify.Remux) {
		t.Fatal("expected Remux to require a test clip")
	}
	if ShouldExtract(classify.WebDl) || ShouldExtract(classify.LowQuality) {
		t.Fatal("expected WebDl/LowQuality to skip the test clip workflow")
	}
}

func TestParseDurationFormats(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"01:02:03.500", 3723.5},
		{"120.25", 120.25},
	}
	for _, tc := range cases {
		got, err := ParseDuration(tc.in)
		if err != nil {
			t.Fatalf("ParseDuration(%q): %v", tc.in, err)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("ParseDuration(%q) = %f, want %f", tc.in, got, tc.want)
		}
	}
}

func TestSelectStartUsesQuarterOffset(t *testing.T) {
	report := &probe.Report{Format: probe.Format{Tags: map[string]string{"DURATION": "00:20:00.000"}}}
	got := SelectStart(report)
	want := 1200.0 * 0.25
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("SelectStart = %f, want %f", got, want)
	}
}

func TestSelectStartFallsBackWithoutDurationTag(t *testing.T) {
	report := &probe.Report{Format: probe.Format{Tags: map[string]string{}}}
	if got := SelectStart(report); got != fallbackStart {
		t.Fatalf("SelectStart = %f, want fallback %f", got, fallbackStart)
	}
}

// Adjustments move parameters in the quality-increasing
// direction and never cross their floors.
func TestAdjustParametersRespectsFloors(t *testing.T) {
	params := quality.EncodingParams{CRF: 18, Preset: 3}

	lowered := AdjustParameters(params, Decision{Kind: LowerCrf, Amount: 20})
	if lowered.CRF != 10 {
		t.Fatalf("CRF floor not respected: got %d, want 10", lowered.CRF)
	}

	slowed := AdjustParameters(params, Decision{Kind: SlowerPreset, Amount: 10})
	if slowed.Preset != 0 {
		t.Fatalf("Preset floor not respected: got %d, want 0", slowed.Preset)
	}

	unchanged := AdjustParameters(params, Decision{Kind: Approved})
	if unchanged != params {
		t.Fatalf("Approved decision should not alter params: got %+v", unchanged)
	}
}

type scriptedApprover struct {
	decisions []Decision
	calls     int
}

func (s *scriptedApprover) Review(string, int) Decision {
	d := s.decisions[s.calls]
	s.calls++
	return d
}

func TestAdjustParametersSequenceConverges(t *testing.T) {
	params := quality.EncodingParams{CRF: 20, Preset: 3}
	decisions := []Decision{
		{Kind: LowerCrf, Amount: 2},
		{Kind: SlowerPreset, Amount: 1},
		{Kind: Approved},
	}
	current := params
	for _, d := range decisions {
		current = AdjustParameters(current, d)
	}
	if current.CRF != 18 || current.Preset != 2 {
		t.Fatalf("converged params = %+v, want CRF=18 Preset=2", current)
	}
}

// Cap behavior: exhausting the iteration cap without an
// explicit Approved/Rejected decision is itself treated as Rejected.
func TestRunExhaustsIterationsAndRejects(t *testing.T) {
	ffmpeg := fakeFFmpeg(t)
	tmpDir := t.TempDir()
	report := &probe.Report{Format: probe.Format{Tags: map[string]string{}}}
	params := quality.EncodingParams{CRF: 30, Preset: 6, PixelFormat: "yuv420p", Encoder: quality.SvtAV1}

	decisions := make([]Decision, maxIterations)
	for i := range decisions {
		decisions[i] = Decision{Kind: LowerCrf, Amount: 1}
	}
	approver := &scriptedApprover{decisions: decisions}

	outcome, err := Run(context.Background(), ffmpeg, "/source.mkv", tmpDir, report, classify.WebSourceDecision{}, params, approver, time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !outcome.Rejected {
		t.Fatal("expected cap exhaustion to be Rejected")
	}
	if outcome.Iterations != maxIterations {
		t.Fatalf("Iterations = %d, want %d", outcome.Iterations, maxIterations)
	}
}
