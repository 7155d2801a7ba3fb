package quality

import (
	"testing"

	"github.com/IONIQ6000/av1-doc-sub000/internal/classify"
	"github.com/IONIQ6000/av1-doc-sub000/internal/probe"
)

func videoReport(height int, pixFmt string) *probe.Report {
	return &probe.Report{
		Streams: []probe.Stream{
			{CodecType: "video", Height: height, PixFmt: pixFmt},
		},
	}
}

func TestCRFTable(t *testing.T) {
	cases := []struct {
		tier   classify.QualityTier
		height int
		want   int
	}{
		{classify.Remux, 2160, 20},
		{classify.Remux, 1080, 18},
		{classify.WebDl, 2160, 28},
		{classify.WebDl, 1080, 26},
		{classify.LowQuality, 2160, 30},
		{classify.LowQuality, 1080, 30},
	}
	for _, tc := range cases {
		params := Plan(tc.tier, videoReport(tc.height, "yuv420p"), SvtAV1, nil)
		if params.CRF != tc.want {
			t.Fatalf("tier=%s height=%d: CRF = %d, want %d", tc.tier, tc.height, params.CRF, tc.want)
		}
	}
}

func TestPresetTable(t *testing.T) {
	cases := []struct {
		tier classify.QualityTier
		want int
	}{
		{classify.Remux, 3},
		{classify.WebDl, 5},
		{classify.LowQuality, 6},
	}
	for _, tc := range cases {
		params := Plan(tc.tier, videoReport(1080, "yuv420p"), SvtAV1, nil)
		if params.Preset != tc.want {
			t.Fatalf("tier=%s: Preset = %d, want %d", tc.tier, params.Preset, tc.want)
		}
	}
}

func TestFilmGrainOnlyForRemux(t *testing.T) {
	remux := Plan(classify.Remux, videoReport(1080, "yuv420p"), SvtAV1, nil)
	if remux.FilmGrain == nil || *remux.FilmGrain != 8 {
		t.Fatalf("expected film_grain=8 for remux, got %v", remux.FilmGrain)
	}

	webdl := Plan(classify.WebDl, videoReport(1080, "yuv420p"), SvtAV1, nil)
	if webdl.FilmGrain != nil {
		t.Fatalf("expected no film_grain for webdl, got %v", *webdl.FilmGrain)
	}
}

func TestTuneOnlyForPerceptualEncoder(t *testing.T) {
	tuned := Plan(classify.Remux, videoReport(1080, "yuv420p"), SvtAV1Psy, nil)
	if tuned.Tune == nil || *tuned.Tune != 3 {
		t.Fatalf("expected tune=3 for psy encoder, got %v", tuned.Tune)
	}

	untuned := Plan(classify.Remux, videoReport(1080, "yuv420p"), LibaomAV1, nil)
	if untuned.Tune != nil {
		t.Fatalf("expected no tune for libaom, got %v", *untuned.Tune)
	}
}

// Property 3: planner.pixel_format is always yuv420p or yuv420p10le, and
// equals yuv420p10le whenever source bit depth is 10-bit or unknown.
func TestBitDepthPreservation(t *testing.T) {
	cases := []struct {
		pixFmt string
		want   string
	}{
		{"yuv420p10le", "yuv420p10le"},
		{"yuv420p", "yuv420p"},
		{"gbrp", "yuv420p10le"}, // unknown bit depth never downconverts
	}
	for _, tc := range cases {
		params := Plan(classify.WebDl, videoReport(1080, tc.pixFmt), SvtAV1, nil)
		if params.PixelFormat != "yuv420p" && params.PixelFormat != "yuv420p10le" {
			t.Fatalf("pixel_format %q not in allowed set", params.PixelFormat)
		}
		if params.PixelFormat != tc.want {
			t.Fatalf("pix_fmt=%q: PixelFormat = %q, want %q", tc.pixFmt, params.PixelFormat, tc.want)
		}
	}
}
