package storage

import (
	"encoding/binary"
	"fmt"
	"path"
	"regexp"
	"time"

	"github.com/google/uuid"
)

const runsRoot = "runs"

var runIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-7[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// NewRunID returns a time-ordered (version 7) UUID so the archive partition
// can be recovered from the id alone.
func NewRunID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id.String(), nil
}

// BuildRunPath returns runs/date=YYYY-MM-DD/<run_id>.parquet, dated by the
// timestamp embedded in the run id.
func BuildRunPath(runID string) (string, error) {
	created, err := RunTime(runID)
	if err != nil {
		return "", err
	}
	return path.Join(
		runsRoot,
		fmt.Sprintf("date=%04d-%02d-%02d", created.Year(), created.Month(), created.Day()),
		runID+".parquet",
	), nil
}

// RunTime extracts the UTC creation time from a version 7 run id.
func RunTime(runID string) (time.Time, error) {
	if !runIDPattern.MatchString(runID) {
		return time.Time{}, fmt.Errorf("invalid run id: %q", runID)
	}
	id, err := uuid.Parse(runID)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid run id: %q", runID)
	}
	var millis [8]byte
	copy(millis[2:], id[:6])
	return time.UnixMilli(int64(binary.BigEndian.Uint64(millis[:]))).UTC(), nil
}
