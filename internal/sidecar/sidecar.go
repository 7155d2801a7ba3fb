// Package sidecar derives and writes the auxiliary files the orchestrator
// places beside a source media file: the skip marker, the reason file, and
// the conversion report.
package sidecar

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// swapExt returns sourcePath with its extension replaced by ext (which
// should include the leading dot).
func swapExt(sourcePath, ext string) string {
	base := filepath.Base(sourcePath)
	dir := filepath.Dir(sourcePath)
	trimmed := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, trimmed+ext)
}

// SkipMarkerPath returns the path of the .av1skip marker for sourcePath.
func SkipMarkerPath(sourcePath string) string {
	return swapExt(sourcePath, ".av1skip")
}

// HasSkipMarker reports whether a skip marker already exists for sourcePath.
func HasSkipMarker(sourcePath string) bool {
	_, err := os.Stat(SkipMarkerPath(sourcePath))
	return err == nil
}

// WriteSkipMarker writes an empty .av1skip marker beside sourcePath.
func WriteSkipMarker(sourcePath string) error {
	path := SkipMarkerPath(sourcePath)
	if err := os.WriteFile(path, []byte{}, 0644); err != nil {
		return fmt.Errorf("write skip marker %s: %w", path, err)
	}
	return nil
}

// WhyPath returns the path of the .why.txt reason file for sourcePath.
func WhyPath(sourcePath string) string {
	return swapExt(sourcePath, ".why.txt")
}

// WriteWhy writes a one-line reason sidecar beside sourcePath, overwriting
// any existing file.
func WriteWhy(sourcePath, reason string) error {
	path := WhyPath(sourcePath)
	if err := os.WriteFile(path, []byte(reason), 0644); err != nil {
		return fmt.Errorf("write why file %s: %w", path, err)
	}
	return nil
}

// ReportPath returns the path of the .av1-conversion-report.txt sidecar for
// sourcePath.
func ReportPath(sourcePath string) string {
	return swapExt(sourcePath, ".av1-conversion-report.txt")
}

// WriteReport writes the detailed conversion report beside sourcePath,
// overwriting any existing file.
func WriteReport(sourcePath, content string) error {
	path := ReportPath(sourcePath)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write conversion report %s: %w", path, err)
	}
	return nil
}
