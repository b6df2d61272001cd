// Package chromtext reads detector exports in the one-value-per-line text
// format: integer lines are samples, a "Sample ID: <name>" line names the run
// and every other line is ignored.
package chromtext

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"mchroma/pkg/domain"
)

const sampleIDMarker = "Sample ID"

// File is a parsed detector export.
type File struct {
	Name   string
	Counts []int
	// Skipped counts non-sample lines other than the name line.
	Skipped int
}

// Parse reads r to EOF. When several name lines exist the last one wins.
func Parse(r io.Reader) (File, error) {
	var f File
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			f.consume(line)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return File{}, fmt.Errorf("read trace: %w", err)
		}
	}
	return f, nil
}

func (f *File) consume(line string) {
	if n, err := strconv.Atoi(strings.TrimSpace(line)); err == nil {
		f.Counts = append(f.Counts, n)
		return
	}
	if strings.Contains(line, sampleIDMarker) {
		name := strings.ReplaceAll(line, sampleIDMarker+": ", "")
		f.Name = strings.TrimRight(name, "\r\n")
		return
	}
	f.Skipped++
}

// Trace builds a domain trace from the parsed counts. A file without samples
// yields domain.ErrEmptyTrace. An empty opts.Name is replaced by the file's name.
func (f File) Trace(opts domain.TraceOptions) (*domain.Trace, error) {
	if opts.Name == "" {
		opts.Name = f.Name
	}
	tr, err := domain.NewTraceFromCounts(f.Counts, opts)
	if err != nil {
		return nil, fmt.Errorf("trace %q: %w", f.Name, err)
	}
	return tr, nil
}
