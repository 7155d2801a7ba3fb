// Package ffbinary ensures a working ffmpeg binary is present on disk,
// downloading and extracting one from a static-build archive when needed,
// and verifies it exposes at least one software AV1 encoder.
package ffbinary

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/IONIQ6000/av1-doc-sub000/internal/encoder"
	"github.com/IONIQ6000/av1-doc-sub000/internal/logging"
)

// softwareAV1Encoders is the set of encoder names VerifyFFmpeg will accept;
// any one of them being present in `ffmpeg -encoders` output is sufficient.
var softwareAV1Encoders = []string{"libsvtav1", "libaom-av1", "librav1e"}

// Ensure makes sure ffmpeg exists and is executable at installDir, downloading
// and extracting it from ffmpegURL if necessary, then verifies it. Returns
// the path to the ffmpeg binary.
func Ensure(installDir, ffmpegURL string, log *logging.Logger) (string, error) {
	ffmpegPath := filepath.Join(installDir, "ffmpeg")

	if info, err := os.Stat(ffmpegPath); err == nil && info.Mode().Perm()&0111 != 0 {
		if err := Verify(ffmpegPath); err == nil {
			log.Info("ffmpeg found and verified at %s", ffmpegPath)
			return ffmpegPath, nil
		} else {
			log.Warn("existing ffmpeg failed verification: %v; re-downloading", err)
			if err := os.Remove(ffmpegPath); err != nil {
				return "", fmt.Errorf("remove broken ffmpeg: %w", err)
			}
		}
	}

	log.Info("downloading ffmpeg from %s", ffmpegURL)
	if err := downloadAndExtract(installDir, ffmpegURL); err != nil {
		return "", fmt.Errorf("download/extract ffmpeg: %w", err)
	}

	if err := Verify(ffmpegPath); err != nil {
		return "", fmt.Errorf("ffmpeg verification failed: %w", err)
	}

	log.Info("ffmpeg installed and verified at %s", ffmpegPath)
	return ffmpegPath, nil
}

// downloadAndExtract fetches an .xz-compressed tarball and writes the ffmpeg
// binary it contains, and the ffprobe binary when the archive has one, into
// installDir.
func downloadAndExtract(installDir, url string) error {
	if err := os.MkdirAll(installDir, 0755); err != nil {
		return fmt.Errorf("create install dir: %w", err)
	}

	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("download archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected HTTP status: %d", resp.StatusCode)
	}

	archiveData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read archive body: %w", err)
	}

	xzReader, err := xz.NewReader(bytes.NewReader(archiveData))
	if err != nil {
		return fmt.Errorf("create xz reader: %w", err)
	}

	tarReader := tar.NewReader(xzReader)
	var ffmpegBinary []byte
	found := false

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}
		if header.Typeflag == tar.TypeReg && filepath.Base(header.Name) == "ffprobe" {
			probeBinary, err := io.ReadAll(tarReader)
			if err != nil {
				return fmt.Errorf("read ffprobe binary from archive: %w", err)
			}
			if err := os.WriteFile(filepath.Join(installDir, "ffprobe"), probeBinary, 0755); err != nil {
				return fmt.Errorf("write ffprobe binary: %w", err)
			}
			continue
		}
		if header.Typeflag == tar.TypeReg && filepath.Base(header.Name) == "ffmpeg" {
			ffmpegBinary, err = io.ReadAll(tarReader)
			if err != nil {
				return fmt.Errorf("read ffmpeg binary from archive: %w", err)
			}
			found = true
		}
	}

	if !found {
		return fmt.Errorf("ffmpeg binary not found in archive")
	}

	ffmpegPath := filepath.Join(installDir, "ffmpeg")
	if err := os.WriteFile(ffmpegPath, ffmpegBinary, 0755); err != nil {
		return fmt.Errorf("write ffmpeg binary: %w", err)
	}

	return nil
}

// Verify checks that ffmpegPath runs, reports a version at or above the
// required floor, and exposes at least one software AV1 encoder.
func Verify(ffmpegPath string) error {
	versionOutput, err := exec.Command(ffmpegPath, "-version").Output()
	if err != nil {
		return fmt.Errorf("run ffmpeg -version: %w", err)
	}
	versionLine := strings.SplitN(string(versionOutput), "\n", 2)[0]
	if err := encoder.VerifyVersionLine(versionLine); err != nil {
		return err
	}

	encodersOutput, err := exec.Command(ffmpegPath, "-hide_banner", "-encoders").Output()
	if err != nil {
		return fmt.Errorf("run ffmpeg -encoders: %w", err)
	}
	listing := string(encodersOutput)

	for _, name := range softwareAV1Encoders {
		if strings.Contains(listing, name) {
			return nil
		}
	}

	return fmt.Errorf("no software AV1 encoder (%s) found in ffmpeg build", strings.Join(softwareAV1Encoders, ", "))
}

// DeriveProbePath returns the ffprobe path that sits alongside ffmpeg in the
// same install directory.
func DeriveProbePath(ffmpegPath string) string {
	return filepath.Join(filepath.Dir(ffmpegPath), "ffprobe")
}
