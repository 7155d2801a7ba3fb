// Package quality derives encoder parameters from a source's quality tier,
// its probed metadata, and the capabilities of the chosen encoder, under a
// quality-first policy: when in doubt, prefer fidelity over file size.
package quality

import (
	"strconv"

	"github.com/IONIQ6000/av1-doc-sub000/internal/classify"
	"github.com/IONIQ6000/av1-doc-sub000/internal/logging"
	"github.com/IONIQ6000/av1-doc-sub000/internal/probe"
)

// EncoderVariant identifies a concrete AV1 encoder implementation. It is
// modeled as a tagged string variant rather than an interface hierarchy
// since every variant differs only in its rate/speed flag names and whether
// it supports perceptual tuning, both handled by small table lookups.
type EncoderVariant string

const (
	SvtAV1Psy EncoderVariant = "libsvtav1_psy" // perceptually tuned SVT-AV1 build
	SvtAV1    EncoderVariant = "libsvtav1"
	LibaomAV1 EncoderVariant = "libaom-av1"
	LibRav1e  EncoderVariant = "librav1e"
)

// SupportsPerceptualTune reports whether this encoder variant accepts a
// perceptual tune parameter.
func (e EncoderVariant) SupportsPerceptualTune() bool {
	return e == SvtAV1Psy
}

// FFmpegCodecName returns the ffmpeg -c:v value for this encoder variant.
func (e EncoderVariant) FFmpegCodecName() string {
	switch e {
	case SvtAV1Psy, SvtAV1:
		return "libsvtav1"
	case LibaomAV1:
		return "libaom-av1"
	case LibRav1e:
		return "librav1e"
	default:
		return string(e)
	}
}

// EncodingParams is the plan-time value handed to the encoder adapter.
type EncodingParams struct {
	CRF         int
	Preset      int
	Tune        *int
	FilmGrain   *int
	BitDepth    probe.BitDepth
	PixelFormat string
	Encoder     EncoderVariant
}

func intPtr(v int) *int { return &v }

// Plan computes EncodingParams for a classified source. It is
// side-effect-free apart from a single structured log line per call.
func Plan(tier classify.QualityTier, report *probe.Report, encoder EncoderVariant, log *logging.Logger) EncodingParams {
	v := report.VideoStream()
	height := 0
	bitDepth := probe.BitDepthUnknown
	if v != nil {
		height = v.Height
		bitDepth = v.BitDepth()
	}

	pixelFormat := "yuv420p10le"
	if bitDepth == probe.BitDepth8 {
		pixelFormat = "yuv420p"
	}

	crf := calculateCRF(tier, height)
	preset := calculatePreset(tier)

	var tune *int
	if encoder.SupportsPerceptualTune() {
		tune = intPtr(3)
	}

	var filmGrain *int
	if tier == classify.Remux {
		filmGrain = intPtr(8)
	}

	params := EncodingParams{
		CRF:         crf,
		Preset:      preset,
		Tune:        tune,
		FilmGrain:   filmGrain,
		BitDepth:    bitDepth,
		PixelFormat: pixelFormat,
		Encoder:     encoder,
	}

	if log != nil {
		log.Info("planned %s encode: crf=%d preset=%d pixel_format=%s tune=%s film_grain=%s encoder=%s",
			tier, params.CRF, params.Preset, params.PixelFormat, optionalInt(tune), optionalInt(filmGrain), encoder)
	}

	return params
}

func optionalInt(v *int) string {
	if v == nil {
		return "none"
	}
	return strconv.Itoa(*v)
}

// calculateCRF: Remux 2160p->20 else 18; WebDl 2160p->28 else 26;
// LowQuality->30.
func calculateCRF(tier classify.QualityTier, height int) int {
	switch tier {
	case classify.Remux:
		if height >= 2160 {
			return 20
		}
		return 18
	case classify.WebDl:
		if height >= 2160 {
			return 28
		}
		return 26
	default:
		return 30
	}
}

// calculatePreset: lower preset number is slower and higher quality.
func calculatePreset(tier classify.QualityTier) int {
	switch tier {
	case classify.Remux:
		return 3
	case classify.WebDl:
		return 5
	default:
		return 6
	}
}
