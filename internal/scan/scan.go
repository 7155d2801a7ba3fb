// Package scan walks configured library roots and turns filesystem entries
// into scan results the daemon loop turns into jobs.
package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/IONIQ6000/av1-doc-sub000/internal/logging"
	"github.com/IONIQ6000/av1-doc-sub000/internal/sidecar"
)

// mediaExtensions is the set of file extensions (without the dot) eligible
// to become a candidate.
var mediaExtensions = map[string]bool{
	"mkv":  true,
	"mp4":  true,
	"m4v":  true,
	"avi":  true,
	"mov":  true,
	"webm": true,
}

// stabilityWaitSeconds is the delay between the two size samples the
// stability probe takes.
const stabilityWaitSeconds = 10

// Result is one outcome of scanning a single filesystem entry.
type Result struct {
	Path      string
	Size      int64
	Candidate bool
	Reason    string
}

// Walk walks root (not following symlinks) and returns one Result per
// regular file with a media extension. I/O errors on individual entries are
// logged and the entry is skipped; they never abort the walk.
func Walk(root string, minBytes int64, log *logging.Logger) ([]Result, error) {
	var results []Result
	seen := 0

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Warn("scan error at %s: %v", path, err)
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		seen++
		if seen%1000 == 0 {
			log.Info("scanned %d entries under %s", seen, root)
		}

		if !isMediaFile(path) {
			return nil
		}

		result := evaluate(path, info, minBytes)
		results = append(results, result)
		return nil
	})
	if err != nil {
		return results, fmt.Errorf("walk %s: %w", root, err)
	}

	return results, nil
}

func isMediaFile(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return mediaExtensions[ext]
}

func evaluate(path string, info os.FileInfo, minBytes int64) Result {
	if sidecar.HasSkipMarker(path) {
		return Result{Path: path, Reason: "skip marker (.av1skip) exists"}
	}

	if info.Size() <= minBytes {
		return Result{Path: path, Reason: fmt.Sprintf("file < %d bytes", minBytes)}
	}

	stable, err := CheckFileStable(path, stabilityWaitSeconds)
	if err != nil {
		return Result{Path: path, Reason: fmt.Sprintf("stability check failed: %v", err)}
	}
	if !stable {
		return Result{Path: path, Reason: "file still copying"}
	}

	return Result{Path: path, Size: info.Size(), Candidate: true}
}

// CheckFileStable samples path's size, waits waitSeconds, then samples it
// again; the file is stable iff the two sizes match.
func CheckFileStable(path string, waitSeconds int) (bool, error) {
	info0, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("stat file: %w", err)
	}
	size0 := info0.Size()

	time.Sleep(time.Duration(waitSeconds) * time.Second)

	info1, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("stat file after wait: %w", err)
	}

	return size0 == info1.Size(), nil
}
