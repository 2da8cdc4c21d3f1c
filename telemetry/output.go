package telemetry

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
)

// TrajectoryRow is one agent's recorded state at one step, the flat
// CSV projection of the in-memory path/orientation logs an agent.Agent
// already keeps (SPEC_FULL.md's §12 "Output").
type TrajectoryRow struct {
	Step        int     `csv:"step"`
	AgentID     int     `csv:"agent_id"`
	GroupID     int     `csv:"group_id"`
	X           float64 `csv:"x"`
	Y           float64 `csv:"y"`
	OrientX     float64 `csv:"orient_x"`
	OrientY     float64 `csv:"orient_y"`
	Active      bool    `csv:"active"`
}

// TrajectorySink appends TrajectoryRow records to a CSV file, flushing to
// disk every flushEvery rows rather than buffering the whole run in memory.
type TrajectorySink struct {
	file          *os.File
	headerWritten bool
	flushEvery    int
	sinceFlush    int
}

// NewTrajectorySink creates (or truncates) the CSV file at path. A path of
// "" disables the sink: every method becomes a no-op, so callers don't need
// to branch on whether CSV output was requested.
func NewTrajectorySink(path string, flushEvery int) (*TrajectorySink, error) {
	if path == "" {
		return nil, nil
	}
	if flushEvery < 1 {
		flushEvery = 1
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating trajectory csv: %w", err)
	}
	return &TrajectorySink{file: f, flushEvery: flushEvery}, nil
}

// WriteRows appends one or more trajectory rows, flushing to disk once
// flushEvery rows have accumulated since the last flush.
func (s *TrajectorySink) WriteRows(rows []TrajectoryRow) error {
	if s == nil || len(rows) == 0 {
		return nil
	}

	var err error
	if !s.headerWritten {
		err = gocsv.Marshal(rows, s.file)
		s.headerWritten = true
	} else {
		err = gocsv.MarshalWithoutHeaders(rows, s.file)
	}
	if err != nil {
		return fmt.Errorf("writing trajectory rows: %w", err)
	}

	s.sinceFlush += len(rows)
	if s.sinceFlush >= s.flushEvery {
		if err := s.file.Sync(); err != nil {
			return fmt.Errorf("flushing trajectory csv: %w", err)
		}
		s.sinceFlush = 0
	}
	return nil
}

// Close flushes and closes the sink's file.
func (s *TrajectorySink) Close() error {
	if s == nil {
		return nil
	}
	return s.file.Close()
}
