package difflog

import "errors"

// RecordSize is the encoded size of one Record.
const RecordSize = 9

// ErrTruncatedRecord is returned when a log ends inside a record.
var ErrTruncatedRecord = errors.New("difflog: truncated record")

// Record sets one byte of the image.
type Record struct {
	Offset uint64
	Value  uint8
}

// Stats summarizes one encode or replay.
type Stats struct {
	// Records is the number of records written or read.
	Records uint64 `json:"records" yaml:"records"`
	// Skipped counts zero bytes omitted by a sparse encode, or out-of-bounds
	// records ignored by a replay.
	Skipped uint64 `json:"skipped" yaml:"skipped"`
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Records += o.Records
	s.Skipped += o.Skipped
}
