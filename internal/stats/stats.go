// Package stats formats the post-run execution statistics the CLI's
// --performance flag prints, using github.com/dustin/go-humanize for
// reader-friendly byte and count formatting.
package stats

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Report summarizes one compile-and-run pass.
type Report struct {
	BuildID       uuid.UUID
	RunID         uuid.UUID
	SourceBytes   int
	CompiledBytes int
	Instructions  uint64
	CompileTime   time.Duration
	RunTime       time.Duration
}

// Write renders the report in the teacher's plain key: value diagnostic
// style, one field per line.
func (r Report) Write(w io.Writer) error {
	lines := []string{
		fmt.Sprintf("build id:       %s", r.BuildID),
		fmt.Sprintf("run id:         %s", r.RunID),
		fmt.Sprintf("source size:    %s", humanize.Bytes(uint64(r.SourceBytes))),
		fmt.Sprintf("compiled size:  %s", humanize.Bytes(uint64(r.CompiledBytes))),
		fmt.Sprintf("instructions:   %s", humanize.Comma(int64(r.Instructions))),
		fmt.Sprintf("compile time:   %s", r.CompileTime),
		fmt.Sprintf("run time:       %s", r.RunTime),
	}
	if r.RunTime > 0 {
		rate := float64(r.Instructions) / r.RunTime.Seconds()
		lines = append(lines, fmt.Sprintf("throughput:     %s ops/sec", humanize.Comma(int64(rate))))
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
