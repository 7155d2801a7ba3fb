// Package encoder builds ffmpeg argv vectors from a quality plan, discovers
// which software AV1 encoder variant is available, and executes the encode
// with stdio capture and a timeout.
package encoder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/IONIQ6000/av1-doc-sub000/internal/classify"
	"github.com/IONIQ6000/av1-doc-sub000/internal/probe"
	"github.com/IONIQ6000/av1-doc-sub000/internal/quality"
)

// webDemuxFlags are prepended before -i only when the source was classified
// as web-like, to correct the variable frame rate and timestamp quirks
// common in web rips. Every one of these flags must precede -i: -vsync applies to
// demuxing, not just encoding, so placing it after -i changes behavior on
// VFR web rips.
var webDemuxFlags = []string{
	"-fflags", "+genpts",
	"-copyts",
	"-start_at_zero",
	"-vsync", "0",
	"-avoid_negative_ts", "make_zero",
}

// BuildArgv constructs the full ffmpeg argv for a full encode. The
// resulting argv never contains a container-runtime token; this is a
// structural property of how the vector is assembled, not a post-hoc filter.
func BuildArgv(inputPath, outputPath string, report *probe.Report, webDecision classify.WebSourceDecision, params quality.EncodingParams) []string {
	var args []string

	args = append(args, "-hide_banner", "-analyzeduration", "50M", "-probesize", "50M")

	if webDecision.Class == classify.WebLike {
		args = append(args, webDemuxFlags...)
	}

	args = append(args, "-i", inputPath)

	args = append(args,
		"-map", "0:v:0",
		"-map", "0:a?",
		"-map", "0:s?",
	)

	args = append(args, "-vf", fmt.Sprintf("format=%s", params.PixelFormat))

	args = append(args, "-c:v", params.Encoder.FFmpegCodecName())
	args = append(args, rateAndSpeedFlags(params)...)

	args = append(args, "-pix_fmt", params.PixelFormat)

	args = append(args, "-c:a", "copy", "-c:s", "copy")

	args = append(args, "-map_metadata", "0", "-map_chapters", "0")

	args = append(args, outputPath)

	return args
}

// rateAndSpeedFlags returns the encoder-specific rate and speed flags, plus
// any extra perceptual parameters, for the chosen encoder variant.
func rateAndSpeedFlags(params quality.EncodingParams) []string {
	var args []string

	switch params.Encoder {
	case quality.SvtAV1Psy, quality.SvtAV1:
		args = append(args, "-crf", strconv.Itoa(params.CRF), "-preset", strconv.Itoa(params.Preset))
		if extra := svtExtraParams(params); extra != "" {
			args = append(args, "-svtav1-params", extra)
		}
	case quality.LibaomAV1:
		cpuUsed := scalePreset(params.Preset, 13, 8)
		args = append(args, "-crf", strconv.Itoa(params.CRF), "-b:v", "0", "-cpu-used", strconv.Itoa(cpuUsed))
	case quality.LibRav1e:
		speed := scalePreset(params.Preset, 13, 10)
		args = append(args, "-qp", strconv.Itoa(params.CRF), "-speed", strconv.Itoa(speed))
	default:
		args = append(args, "-crf", strconv.Itoa(params.CRF), "-preset", strconv.Itoa(params.Preset))
	}

	return args
}

// svtExtraParams renders the tune/film-grain values as an SVT-AV1
// colon-separated parameter string, e.g. "tune=3:film-grain=8".
func svtExtraParams(params quality.EncodingParams) string {
	var parts []string
	if params.Tune != nil {
		parts = append(parts, fmt.Sprintf("tune=%d", *params.Tune))
	}
	if params.FilmGrain != nil {
		parts = append(parts, fmt.Sprintf("film-grain=%d", *params.FilmGrain))
	}
	return strings.Join(parts, ":")
}

// scalePreset linearly rescales a value from [0, fromMax] to [0, toMax],
// rounding to the nearest integer.
func scalePreset(value, fromMax, toMax int) int {
	if fromMax <= 0 {
		return 0
	}
	scaled := float64(value) * float64(toMax) / float64(fromMax)
	return int(scaled + 0.5)
}
