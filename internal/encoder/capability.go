package encoder

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/IONIQ6000/av1-doc-sub000/internal/quality"
)

// ErrNoEncoder is returned when none of the preferred AV1 encoder variants
// are available in the ffmpeg build.
var ErrNoEncoder = fmt.Errorf("no supported AV1 encoder found in ffmpeg build")

// preferenceOrder is the default encoder preference: perceptually tuned
// SVT-AV1, standard SVT-AV1, libaom-av1, librav1e.
var preferenceOrder = []quality.EncoderVariant{
	quality.SvtAV1Psy,
	quality.SvtAV1,
	quality.LibaomAV1,
	quality.LibRav1e,
}

// ffmpegEncoderName maps a variant to the name ffmpeg -encoders lists.
func ffmpegEncoderName(v quality.EncoderVariant) string {
	switch v {
	case quality.SvtAV1Psy, quality.SvtAV1:
		return "libsvtav1"
	case quality.LibaomAV1:
		return "libaom-av1"
	case quality.LibRav1e:
		return "librav1e"
	default:
		return string(v)
	}
}

// DiscoverEncoder inspects an ffmpeg binary's `-version` and `-encoders`
// output and returns the best available encoder variant. If preferred is
// non-empty and the underlying ffmpeg encoder name is present, it is chosen
// without walking the preference order (a preferred SvtAV1Psy still goes
// through the same downgrade check as below); otherwise the preference order
// is walked.
func DiscoverEncoder(ffmpegPath string, preferred quality.EncoderVariant) (quality.EncoderVariant, error) {
	if err := verifyVersion(ffmpegPath); err != nil {
		return "", err
	}

	encodersOutput, err := exec.Command(ffmpegPath, "-hide_banner", "-encoders").Output()
	if err != nil {
		return "", fmt.Errorf("ffmpeg -encoders failed: %w", err)
	}
	listing := string(encodersOutput)

	if preferred != "" {
		if strings.Contains(listing, ffmpegEncoderName(preferred)) {
			return resolvePsyVariant(ffmpegPath, preferred), nil
		}
	}

	for _, candidate := range preferenceOrder {
		if strings.Contains(listing, ffmpegEncoderName(candidate)) {
			return resolvePsyVariant(ffmpegPath, candidate), nil
		}
	}

	return "", ErrNoEncoder
}

// resolvePsyVariant downgrades a requested SvtAV1Psy candidate to plain
// SvtAV1 when the installed build does not expose a psy-tuned tune option,
// detected by checking the per-encoder help text for a "tune" option.
func resolvePsyVariant(ffmpegPath string, candidate quality.EncoderVariant) quality.EncoderVariant {
	if candidate != quality.SvtAV1Psy {
		return candidate
	}
	help, err := exec.Command(ffmpegPath, "-hide_banner", "-h", "encoder=libsvtav1").Output()
	if err != nil || !strings.Contains(string(help), "tune") {
		return quality.SvtAV1
	}
	return quality.SvtAV1Psy
}

// verifyVersion rejects ffmpeg builds older than major version 8.
func verifyVersion(ffmpegPath string) error {
	output, err := exec.Command(ffmpegPath, "-version").Output()
	if err != nil {
		return fmt.Errorf("ffmpeg -version failed: %w", err)
	}
	return VerifyVersionLine(strings.SplitN(string(output), "\n", 2)[0])
}

// VerifyVersionLine rejects a `ffmpeg -version` first line reporting a major
// version below 8. Exported so other packages that verify an ffmpeg binary
// (e.g. ffbinary) apply the same floor instead of a separate string match.
func VerifyVersionLine(versionLine string) error {
	major, ok := ParseMajorVersion(versionLine)
	if !ok {
		return fmt.Errorf("could not parse ffmpeg version from: %s", versionLine)
	}
	if major < 8 {
		return fmt.Errorf("ffmpeg major version %d is below the required floor of 8", major)
	}
	return nil
}

// ParseMajorVersion extracts the leading integer from a string like
// "ffmpeg version 8.0" or "ffmpeg version n8.0-20-g...".
func ParseMajorVersion(versionLine string) (int, bool) {
	fields := strings.Fields(versionLine)
	for _, f := range fields {
		f = strings.TrimPrefix(f, "n")
		digits := strings.SplitN(f, ".", 2)[0]
		if n, err := strconv.Atoi(digits); err == nil {
			return n, true
		}
	}
	return 0, false
}
