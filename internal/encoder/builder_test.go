package encoder

import (
	"strconv"
	"strings"
	"testing"

	"github.com/IONIQ6000/av1-doc-sub000/internal/classify"
	"github.com/IONIQ6000/av1-doc-sub000/internal/probe"
	"github.com/IONIQ6000/av1-doc-sub000/internal/quality"
)

func sampleParams(encoderVariant quality.EncoderVariant) quality.EncodingParams {
	tune := 3
	grain := 8
	return quality.EncodingParams{
		CRF:         20,
		Preset:      3,
		Tune:        &tune,
		FilmGrain:   &grain,
		BitDepth:    probe.BitDepth8,
		PixelFormat: "yuv420p",
		Encoder:     encoderVariant,
	}
}

// Property 4: the argv produced by BuildArgv never contains a
// container-runtime token, since the adapter only ever shells out to a
// locally installed ffmpeg binary.
func TestNoContainerTokensInArgv(t *testing.T) {
	forbidden := []string{"docker", "run", "pull", "build", "--rm", "--privileged", "--entrypoint", "podman"}

	report := &probe.Report{}
	decision := classify.WebSourceDecision{Class: classify.DiscLike}
	argv := BuildArgv("/in.mkv", "/out.mkv", report, decision, sampleParams(quality.SvtAV1Psy))

	joined := strings.Join(argv, " ")
	for _, token := range forbidden {
		if strings.Contains(joined, token) {
			t.Fatalf("argv contains forbidden container token %q: %v", token, argv)
		}
	}

	for _, arg := range argv {
		if arg == "-v" {
			t.Fatalf("argv contains bind-mount flag -v: %v", argv)
		}
	}
}

// Property 5: the format filter is always applied before the video codec is
// selected, regardless of encoder variant or web/disc classification.
func TestFilterAppliesBeforeCodec(t *testing.T) {
	report := &probe.Report{}
	decision := classify.WebSourceDecision{Class: classify.WebLike}
	argv := BuildArgv("/in.mkv", "/out.mkv", report, decision, sampleParams(quality.LibaomAV1))

	filterIdx, codecIdx := -1, -1
	for i, arg := range argv {
		if arg == "-vf" && filterIdx == -1 {
			filterIdx = i
		}
		if arg == "-c:v" && codecIdx == -1 {
			codecIdx = i
		}
	}

	if filterIdx == -1 || codecIdx == -1 {
		t.Fatalf("expected both -vf and -c:v in argv: %v", argv)
	}
	if filterIdx >= codecIdx {
		t.Fatalf("-vf at %d did not precede -c:v at %d: %v", filterIdx, codecIdx, argv)
	}
}

// Property 6: audio and subtitle streams default to stream copy, never
// re-encode, for every encoder variant.
func TestStreamCopyDefaults(t *testing.T) {
	report := &probe.Report{}
	decision := classify.WebSourceDecision{Class: classify.DiscLike}
	argv := BuildArgv("/in.mkv", "/out.mkv", report, decision, sampleParams(quality.SvtAV1))

	joined := strings.Join(argv, " ")
	if !strings.Contains(joined, "-c:a copy") {
		t.Fatalf("expected -c:a copy in argv: %v", argv)
	}
	if !strings.Contains(joined, "-c:s copy") {
		t.Fatalf("expected -c:s copy in argv: %v", argv)
	}
}

func TestWebDemuxFlagsOnlyForWebLike(t *testing.T) {
	report := &probe.Report{}

	webArgv := BuildArgv("/in.mkv", "/out.mkv", report, classify.WebSourceDecision{Class: classify.WebLike}, sampleParams(quality.SvtAV1))
	if !strings.Contains(strings.Join(webArgv, " "), "+genpts") {
		t.Fatalf("expected web demux flags for WebLike source: %v", webArgv)
	}

	discArgv := BuildArgv("/in.mkv", "/out.mkv", report, classify.WebSourceDecision{Class: classify.DiscLike}, sampleParams(quality.SvtAV1))
	if strings.Contains(strings.Join(discArgv, " "), "+genpts") {
		t.Fatalf("did not expect web demux flags for DiscLike source: %v", discArgv)
	}
}

// All five web demux flags (and their values) must precede -i, since -vsync affects demuxing
// and changes behavior on VFR web rips if placed after the input.
func TestWebDemuxFlagsAllPrecedeInput(t *testing.T) {
	report := &probe.Report{}
	argv := BuildArgv("/in.mkv", "/out.mkv", report, classify.WebSourceDecision{Class: classify.WebLike}, sampleParams(quality.SvtAV1))

	inputIdx := -1
	for i, arg := range argv {
		if arg == "-i" {
			inputIdx = i
			break
		}
	}
	if inputIdx == -1 {
		t.Fatalf("expected -i in argv: %v", argv)
	}

	for _, tok := range []string{"+genpts", "-copyts", "-start_at_zero", "-vsync", "-avoid_negative_ts", "make_zero"} {
		idx := -1
		for i, arg := range argv {
			if arg == tok {
				idx = i
				break
			}
		}
		if idx == -1 {
			t.Fatalf("expected token %q in argv: %v", tok, argv)
		}
		if idx >= inputIdx {
			t.Fatalf("token %q at %d did not precede -i at %d: %v", tok, idx, inputIdx, argv)
		}
	}
}

func TestRateAndSpeedFlagsPerEncoder(t *testing.T) {
	cases := []struct {
		variant quality.EncoderVariant
		want    []string
	}{
		{quality.SvtAV1Psy, []string{"-crf", "20", "-preset", "3", "-svtav1-params", "tune=3:film-grain=8"}},
		{quality.LibaomAV1, []string{"-crf", "20", "-b:v", "0", "-cpu-used", strconv.Itoa(scalePreset(3, 13, 8))}},
		{quality.LibRav1e, []string{"-qp", "20", "-speed", strconv.Itoa(scalePreset(3, 13, 10))}},
	}
	for _, tc := range cases {
		got := rateAndSpeedFlags(sampleParams(tc.variant))
		if strings.Join(got, " ") != strings.Join(tc.want, " ") {
			t.Fatalf("variant=%s: rateAndSpeedFlags = %v, want %v", tc.variant, got, tc.want)
		}
	}
}
