package stream

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// maxLineSize bounds a single SSE line; larger records fail the connection
const maxLineSize = 1 << 20

// Record is one dispatched server-sent event
type Record struct {
	Event string
	ID    string
	Data  []byte
}

// byteOrderMark may prefix the first line of a stream
const byteOrderMark = "\ufeff"

// RecordReader splits a text/event-stream body into records. Lines end at
// CRLF, LF or a lone CR.
type RecordReader struct {
	scanner *bufio.Scanner
	started bool
	// skipLF is set after a CR so the LF of a CRLF split across reads is dropped
	skipLF bool
}

// NewRecordReader creates a reader over an event stream body
func NewRecordReader(r io.Reader) *RecordReader {
	rr := &RecordReader{scanner: bufio.NewScanner(r)}
	rr.scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	rr.scanner.Split(rr.splitLines)
	return rr
}

// splitLines is a bufio.SplitFunc for SSE line endings. A CR ends its line
// at once so CR-only streams dispatch without waiting for the next byte.
func (r *RecordReader) splitLines(data []byte, atEOF bool) (int, []byte, error) {
	if r.skipLF && len(data) > 0 {
		r.skipLF = false
		if data[0] == '\n' {
			return 1, nil, nil
		}
	}

	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		r.skipLF = true
		return i + 1, data[:i], nil
	}

	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Next returns the next record that carries data. It returns io.EOF when the
// body ends; a trailing record without its blank-line terminator is discarded.
func (r *RecordReader) Next() (Record, error) {
	var (
		rec     Record
		data    []byte
		hasData bool
	)

	for r.scanner.Scan() {
		line := r.scanner.Text()
		if !r.started {
			r.started = true
			line = strings.TrimPrefix(line, byteOrderMark)
		}

		if line == "" {
			if !hasData {
				rec = Record{}
				continue
			}
			rec.Data = data
			return rec, nil
		}

		// Comment lines are keepalives
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if found {
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "event":
			rec.Event = value
		case "data":
			if hasData {
				data = append(data, '\n')
			}
			data = append(data, value...)
			hasData = true
		case "id":
			rec.ID = value
		}
	}

	if err := r.scanner.Err(); err != nil {
		return Record{}, err
	}
	return Record{}, io.EOF
}
