package sidecar

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPathDerivation(t *testing.T) {
	src := "/media/movies/Some.Movie.2020.mkv"

	if got, want := SkipMarkerPath(src), "/media/movies/Some.Movie.2020.av1skip"; got != want {
		t.Fatalf("SkipMarkerPath() = %q, want %q", got, want)
	}
	if got, want := WhyPath(src), "/media/movies/Some.Movie.2020.why.txt"; got != want {
		t.Fatalf("WhyPath() = %q, want %q", got, want)
	}
	if got, want := ReportPath(src), "/media/movies/Some.Movie.2020.av1-conversion-report.txt"; got != want {
		t.Fatalf("ReportPath() = %q, want %q", got, want)
	}
}

func TestSkipMarkerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "movie.mkv")
	if err := os.WriteFile(src, []byte("fake"), 0644); err != nil {
		t.Fatalf("seed source: %v", err)
	}

	if HasSkipMarker(src) {
		t.Fatal("expected no skip marker before write")
	}
	if err := WriteSkipMarker(src); err != nil {
		t.Fatalf("WriteSkipMarker: %v", err)
	}
	if !HasSkipMarker(src) {
		t.Fatal("expected skip marker after write")
	}
}

func TestWriteWhyOverwrites(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "movie.mkv")

	if err := WriteWhy(src, "first reason"); err != nil {
		t.Fatalf("WriteWhy: %v", err)
	}
	if err := WriteWhy(src, "second reason"); err != nil {
		t.Fatalf("WriteWhy overwrite: %v", err)
	}

	got, err := os.ReadFile(WhyPath(src))
	if err != nil {
		t.Fatalf("read why file: %v", err)
	}
	if string(got) != "second reason" {
		t.Fatalf("why file = %q, want %q", got, "second reason")
	}
}
