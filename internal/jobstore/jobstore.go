// Package jobstore persists one durable job record per source path so the
// daemon can resume idempotently across restarts.
package jobstore

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/IONIQ6000/av1-doc-sub000/internal/classify"
	"github.com/IONIQ6000/av1-doc-sub000/internal/quality"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Job is one durable record per source file.
type Job struct {
	ID           string      `json:"id"`
	SourcePath   string      `json:"source_path"`
	OutputPath   string      `json:"output_path,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	FinishedAt   *time.Time  `json:"finished_at,omitempty"`
	Status       Status      `json:"status"`
	Reason       string      `json:"reason,omitempty"`
	OriginalSize int64       `json:"original_bytes,omitempty"`
	NewSize      int64       `json:"new_bytes,omitempty"`

	// Cached video-stream metadata, populated once probing succeeds.
	VideoCodec    string  `json:"video_codec,omitempty"`
	VideoWidth    int     `json:"video_width,omitempty"`
	VideoHeight   int     `json:"video_height,omitempty"`
	VideoBitrate  string  `json:"video_bitrate,omitempty"`
	FrameRateExpr string  `json:"frame_rate_expr,omitempty"`
	IsWebLike     bool    `json:"is_web_like"`

	// Cached classification and plan, populated once classify/quality run.
	// They are a record only: a job is re-probed and re-classified whenever it
	// is run, and these fields are not read back to skip that work.
	Tier   classify.QualityTier    `json:"tier,omitempty"`
	Params *quality.EncodingParams `json:"encoding_params,omitempty"`
}

// New creates a job with a generated ID and CreatedAt set to now.
func New(sourcePath string) *Job {
	return &Job{
		ID:         uuid.New().String(),
		SourcePath: sourcePath,
		CreatedAt:  time.Now(),
		Status:     StatusPending,
	}
}

func jobPath(dir, id string) string {
	return filepath.Join(dir, id+".json")
}

// Save serializes job to its canonical JSON form and writes it to
// <dir>/<id>.json. Save is idempotent: writing the same job twice yields the
// same bytes.
func Save(job *Job, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create job state dir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}

	if err := os.WriteFile(jobPath(dir, job.ID), data, 0644); err != nil {
		return fmt.Errorf("write job file %s: %w", job.ID, err)
	}

	return nil
}

// LoadAll enumerates dir and parses every job file. Unreadable or malformed
// records are logged as warnings through the standard library logger and
// omitted rather than aborting the load. Returns an
// empty slice if dir does not exist.
func LoadAll(dir string) ([]*Job, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []*Job{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read job state dir %s: %w", dir, err)
	}

	var jobs []*Job
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("WARN skipping unreadable job record %s: %v", path, err)
			continue // crash-torn or unreadable record; skip rather than abort
		}

		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			log.Printf("WARN skipping malformed job record %s: %v", path, err)
			continue // malformed record; skip rather than abort
		}

		jobs = append(jobs, &job)
	}

	return jobs, nil
}

// FindBySourcePath returns the first job whose SourcePath matches, or nil.
func FindBySourcePath(jobs []*Job, sourcePath string) *Job {
	for _, job := range jobs {
		if job.SourcePath == sourcePath {
			return job
		}
	}
	return nil
}

// MarkTerminal stamps status, reason and FinishedAt together so every
// terminal transition is recorded atomically in memory before Save.
func (j *Job) MarkTerminal(status Status, reason string) {
	j.Status = status
	j.Reason = reason
	now := time.Now()
	j.FinishedAt = &now
}

// MarkStarted stamps Running and StartedAt.
func (j *Job) MarkStarted() {
	j.Status = StatusRunning
	now := time.Now()
	j.StartedAt = &now
}
