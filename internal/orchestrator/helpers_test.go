package orchestrator

import "github.com/IONIQ6000/av1-doc-sub000/internal/logging"

func testLogger() *logging.Logger {
	return logging.New(logging.LevelError)
}
