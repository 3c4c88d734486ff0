package stream

import (
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordReader(t *testing.T) {
	t.Run("single data line", func(t *testing.T) {
		r := NewRecordReader(strings.NewReader("data: {\"type\":\"ping\"}\n\n"))

		rec, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, `{"type":"ping"}`, string(rec.Data))
		assert.Empty(t, rec.Event)

		_, err = r.Next()
		assert.Equal(t, io.EOF, err)
	})

	t.Run("multi-line data is joined with newlines", func(t *testing.T) {
		r := NewRecordReader(strings.NewReader("data: first\ndata: second\ndata:third\n\n"))

		rec, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, "first\nsecond\nthird", string(rec.Data))
	})

	t.Run("event name and id are recorded", func(t *testing.T) {
		r := NewRecordReader(strings.NewReader("event: reload\nid: 7\ndata: {}\n\n"))

		rec, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, "reload", rec.Event)
		assert.Equal(t, "7", rec.ID)
	})

	t.Run("comments and empty records are skipped", func(t *testing.T) {
		input := ": keepalive\n\nevent: ping\n\n: another\ndata: x\n\n"
		r := NewRecordReader(strings.NewReader(input))

		rec, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, "x", string(rec.Data))
		// The event name of the empty record must not leak into the next one
		assert.Empty(t, rec.Event)
	})

	t.Run("CRLF line endings", func(t *testing.T) {
		r := NewRecordReader(strings.NewReader("event: ping\r\ndata: a\r\n\r\ndata: b\r\n\r\n"))

		rec, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, "ping", rec.Event)
		assert.Equal(t, "a", string(rec.Data))

		rec, err = r.Next()
		require.NoError(t, err)
		assert.Equal(t, "b", string(rec.Data))
	})

	t.Run("CR-only line endings", func(t *testing.T) {
		r := NewRecordReader(strings.NewReader("data: one\r\rdata: two\r\r"))

		rec, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, "one", string(rec.Data))

		rec, err = r.Next()
		require.NoError(t, err)
		assert.Equal(t, "two", string(rec.Data))
	})

	t.Run("mixed line endings split across reads", func(t *testing.T) {
		input := "event: ping\r\ndata: a\r\rdata: b\n\r\ndata: c\r\n\n"
		r := NewRecordReader(iotest.OneByteReader(strings.NewReader(input)))

		var got []string
		for {
			rec, err := r.Next()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			got = append(got, string(rec.Data))
		}
		assert.Equal(t, []string{"a", "b", "c"}, got)
	})

	t.Run("leading BOM is ignored", func(t *testing.T) {
		input := "\ufeffdata: {\"type\":\"reload\",\"path\":\"/a.css\"}\n\ndata: second\n\n"
		r := NewRecordReader(strings.NewReader(input))

		rec, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, `{"type":"reload","path":"/a.css"}`, string(rec.Data))

		rec, err = r.Next()
		require.NoError(t, err)
		assert.Equal(t, "second", string(rec.Data))
	})

	t.Run("only the first BOM is stripped", func(t *testing.T) {
		r := NewRecordReader(strings.NewReader("data: x\n\n\ufeffdata: y\n\ndata: z\n\n"))

		rec, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, "x", string(rec.Data))

		// A later BOM is part of the field name, so that record has no data
		rec, err = r.Next()
		require.NoError(t, err)
		assert.Equal(t, "z", string(rec.Data))
	})

	t.Run("unterminated trailing record is discarded", func(t *testing.T) {
		r := NewRecordReader(strings.NewReader("data: complete\n\ndata: partial"))

		rec, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, "complete", string(rec.Data))

		_, err = r.Next()
		assert.Equal(t, io.EOF, err)
	})

	t.Run("unknown fields are ignored", func(t *testing.T) {
		r := NewRecordReader(strings.NewReader("retry: 500\nfoo: bar\ndata: y\n\n"))

		rec, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, "y", string(rec.Data))
	})
}
