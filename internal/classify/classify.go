// Package classify fuses many weak signals from a probe report into a
// provenance decision (web-like vs. disc-like) and a quality tier
// (Remux/WebDl/LowQuality), the inputs the quality planner and the encoder
// adapter's demuxer-flag choice both depend on.
package classify

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/IONIQ6000/av1-doc-sub000/internal/probe"
)

// SourceClass is the coarse provenance bucket derived from weak signals.
type SourceClass string

const (
	WebLike  SourceClass = "web_like"
	DiscLike SourceClass = "disc_like"
	Unknown  SourceClass = "unknown"
)

// QualityTier is the coarse quality class driving parameter selection.
type QualityTier string

const (
	Remux      QualityTier = "remux"
	WebDl      QualityTier = "webdl"
	LowQuality QualityTier = "low_quality"
)

// WebSourceDecision is the result of the web-vs-disc heuristic. It shapes
// the encoder adapter's choice of input-side demuxer flags; it does not
// drive the quality tier.
type WebSourceDecision struct {
	Class   SourceClass
	Score   float64
	Reasons []string
}

// SourceClassification is the result of the quality-tier heuristic.
type SourceClassification struct {
	Tier         QualityTier
	Confidence   float64
	Reasons      []string
	BitsPerPixel *float64
}

var webTokens = []string{"WEB-DL", "WEBRIP", "WEB", "NF", "AMZN", "HULU", "DSNP", "ATVP", "WEBDL"}
var discTokens = []string{"BLURAY", "BDRIP", "REMUX", "BDMV", "DVD", "BLU-RAY"}

var lossyAudioCodecs = []string{"aac", "opus", "mp3"}
var losslessAudioCodecs = []string{"truehd", "dts", "flac"}

var modernVideoCodecs = []string{"hevc", "av1", "vp9"}

func firstMatch(haystack string, tokens []string) (string, bool) {
	for _, tok := range tokens {
		if strings.Contains(haystack, tok) {
			return tok, true
		}
	}
	return "", false
}

// ClassifyWebSource computes the web-vs-disc decision for a source file.
func ClassifyWebSource(sourcePath string, report *probe.Report) WebSourceDecision {
	var score float64
	var reasons []string

	base := strings.ToUpper(filepath.Base(sourcePath))

	if tok, ok := firstMatch(base, webTokens); ok {
		score += 0.35
		reasons = append(reasons, fmt.Sprintf("filename token %q suggests web source (+0.35)", tok))
	} else if tok, ok := firstMatch(base, discTokens); ok {
		score -= 0.35
		reasons = append(reasons, fmt.Sprintf("filename token %q suggests disc source (-0.35)", tok))
	}

	container := strings.ToLower(report.Format.FormatName)
	if strings.Contains(container, "mp4") || strings.Contains(container, "mov") {
		score += 0.15
		reasons = append(reasons, "container is mp4/mov (+0.15)")
	}

	muxer := strings.ToLower(report.Format.MuxingApp)
	if strings.Contains(muxer, "mkvmerge") || strings.Contains(muxer, "handbrake") {
		score += 0.10
		reasons = append(reasons, fmt.Sprintf("muxing app %q suggests web remux (+0.10)", report.Format.MuxingApp))
	} else if strings.Contains(muxer, "makemkv") || strings.Contains(muxer, "anydvd") {
		score -= 0.15
		reasons = append(reasons, fmt.Sprintf("muxing app %q suggests disc rip (-0.15)", report.Format.MuxingApp))
	}

	if strings.Contains(strings.ToLower(report.Format.WritingLibrary), "libmkv") {
		score += 0.10
		reasons = append(reasons, "writing library is libmkv (+0.10)")
	}

	audioStreams := report.AudioStreams()
	if len(audioStreams) > 0 {
		codec := strings.ToLower(audioStreams[0].CodecName)
		switch {
		case contains(lossyAudioCodecs, codec):
			score += 0.10
			reasons = append(reasons, fmt.Sprintf("first audio codec %q is lossy web-typical (+0.10)", codec))
		case contains(losslessAudioCodecs, codec) || strings.HasPrefix(codec, "pcm"):
			score -= 0.15
			reasons = append(reasons, fmt.Sprintf("first audio codec %q is lossless disc-typical (-0.15)", codec))
		case codec == "eac3" && len(audioStreams) > 2:
			score -= 0.10
			reasons = append(reasons, "eac3 with >2 audio tracks suggests disc rip (-0.10)")
		}
	}

	subCount := len(report.SubtitleStreams())
	switch {
	case len(audioStreams) == 1 && subCount <= 2:
		score += 0.10
		reasons = append(reasons, "single audio track, <=2 subtitle tracks (+0.10)")
	case len(audioStreams) >= 3 || subCount >= 5:
		score -= 0.15
		reasons = append(reasons, "many audio/subtitle tracks suggests disc rip (-0.15)")
	}

	if v := report.VideoStream(); v != nil {
		if v.AvgFrameRate != "" && v.RFrameRate != "" && v.AvgFrameRate != v.RFrameRate {
			score += 0.20
			reasons = append(reasons, "variable frame rate (+0.20)")
		}
		if (v.Width > 0 && v.Width%2 != 0) || (v.Height > 0 && v.Height%2 != 0) {
			score += 0.15
			reasons = append(reasons, "odd dimensions (+0.15)")
		}
		encoderTag := strings.ToLower(v.Tags["encoder"])
		if strings.Contains(encoderTag, "x264") && strings.Contains(encoderTag, "cabac=1") {
			score += 0.05
			reasons = append(reasons, "x264 cabac=1 encoder tag (+0.05)")
		}
	}

	if bpp, ok := report.BitsPerPixel(); ok {
		switch {
		case bpp < 0.15:
			score += 0.10
			reasons = append(reasons, fmt.Sprintf("low bits-per-pixel %.3f suggests web compression (+0.10)", bpp))
		case bpp > 0.30:
			score -= 0.10
			reasons = append(reasons, fmt.Sprintf("high bits-per-pixel %.3f suggests disc source (-0.10)", bpp))
		}
	}

	class := Unknown
	switch {
	case score >= 0.4:
		class = WebLike
	case score <= -0.3:
		class = DiscLike
	}

	return WebSourceDecision{Class: class, Score: score, Reasons: reasons}
}

// is1080p and is2160p report whether a height falls into the 1080p or 2160p
// bucket used by the quality-tier bitrate thresholds.
func is1080p(h int) bool { return h >= 1000 && h <= 1200 }
func is2160p(h int) bool { return h >= 2000 && h <= 2400 }

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// ClassifyQuality computes the quality tier for a source file.
func ClassifyQuality(sourcePath string, report *probe.Report) SourceClassification {
	scores := map[QualityTier]float64{Remux: 0, WebDl: 0, LowQuality: 0}
	var reasons []string

	v := report.VideoStream()
	height := 0
	if v != nil {
		height = v.Height
	}

	if mbps, ok := report.BitrateMbps(); ok {
		switch {
		case (is1080p(height) && mbps > 15) || (is2160p(height) && mbps > 40):
			scores[Remux] += 0.5
			reasons = append(reasons, fmt.Sprintf("bitrate %.1f Mbps at this resolution is remux-grade (+0.5 remux)", mbps))
		case is1080p(height) && mbps < 5:
			scores[LowQuality] += 0.5
			reasons = append(reasons, fmt.Sprintf("bitrate %.1f Mbps at 1080p is low quality (+0.5 low_quality)", mbps))
		default:
			scores[WebDl] += 0.2
			reasons = append(reasons, fmt.Sprintf("bitrate %.1f Mbps is web-typical (+0.2 webdl)", mbps))
		}
	}

	var bppPtr *float64
	if bpp, ok := report.BitsPerPixel(); ok {
		bppPtr = &bpp
		switch {
		case bpp > 0.3:
			scores[Remux] += 0.2
			reasons = append(reasons, fmt.Sprintf("bits-per-pixel %.3f is remux-grade (+0.2 remux)", bpp))
		case bpp < 0.1:
			scores[LowQuality] += 0.2
			reasons = append(reasons, fmt.Sprintf("bits-per-pixel %.3f is low quality (+0.2 low_quality)", bpp))
		}
	}

	if audio := report.AudioStreams(); len(audio) > 0 {
		codec := strings.ToLower(audio[0].CodecName)
		switch {
		case contains(losslessAudioCodecs, codec) || strings.HasPrefix(codec, "pcm"):
			scores[Remux] += 0.4
			reasons = append(reasons, fmt.Sprintf("lossless audio codec %q (+0.4 remux)", codec))
		case codec == "aac" || codec == "opus":
			scores[WebDl] += 0.1
			reasons = append(reasons, fmt.Sprintf("lossy audio codec %q (+0.1 webdl)", codec))
		}
	}

	if v != nil {
		codec := strings.ToLower(v.CodecName)
		switch {
		case contains(modernVideoCodecs, codec):
			scores[WebDl] += 0.3
			reasons = append(reasons, fmt.Sprintf("modern video codec %q (+0.3 webdl)", codec))
		case codec == "h264":
			scores[WebDl] += 0.1
			reasons = append(reasons, "h264 video codec (+0.1 webdl)")
		}
	}

	base := strings.ToUpper(filepath.Base(sourcePath))
	if strings.Contains(base, "REMUX") {
		scores[Remux] += 0.3
		reasons = append(reasons, "filename contains REMUX (+0.3 remux)")
	} else if _, ok := firstMatch(base, webTokens); ok {
		scores[WebDl] += 0.3
		reasons = append(reasons, "filename contains a web token (+0.3 webdl)")
	}

	audioCount := len(report.AudioStreams())
	subCount := len(report.SubtitleStreams())
	switch {
	case audioCount >= 3 || subCount >= 5:
		scores[Remux] += 0.2
		reasons = append(reasons, "many audio/subtitle tracks (+0.2 remux)")
	case audioCount == 1 && subCount <= 2:
		scores[WebDl] += 0.1
		reasons = append(reasons, "single audio track, few subtitles (+0.1 webdl)")
	}

	tier, confidence := argmaxTier(scores)
	if tier == LowQuality && confidence < 0.3 {
		reasons = append(reasons, fmt.Sprintf("low_quality confidence %.2f below 0.3, upgrading to webdl", confidence))
		tier = WebDl
		confidence = scores[WebDl]
	}

	return SourceClassification{Tier: tier, Confidence: confidence, Reasons: reasons, BitsPerPixel: bppPtr}
}

// tierRank breaks ties toward the higher-quality tier: Remux > WebDl > LowQuality.
var tierRank = map[QualityTier]int{Remux: 2, WebDl: 1, LowQuality: 0}

func argmaxTier(scores map[QualityTier]float64) (QualityTier, float64) {
	best := LowQuality
	bestScore := scores[best]
	for _, tier := range []QualityTier{Remux, WebDl, LowQuality} {
		s := scores[tier]
		if s > bestScore || (s == bestScore && tierRank[tier] > tierRank[best]) {
			best = tier
			bestScore = s
		}
	}
	return best, bestScore
}

// IsModernVideoCodec reports whether codec is one of the already-AV1-adjacent
// modern codecs (hevc, av1, vp9) the skip-reencode policy checks for.
func IsModernVideoCodec(codec string) bool {
	return contains(modernVideoCodecs, strings.ToLower(codec))
}
