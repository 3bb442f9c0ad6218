package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusLineUpdate(t *testing.T) {
	var buf bytes.Buffer
	s := NewStatusLine(&buf, true)

	s.Update("block commit progress (%s): %d%%", "vda", 42)
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "block commit progress (vda): 42%"))
	// padded to the full width, then cursor moved back over it
	assert.True(t, strings.HasSuffix(out, "\x1b[65D"))
	assert.Len(t, out, 65+len("\x1b[65D"))
}

func TestStatusLineDisabled(t *testing.T) {
	var buf bytes.Buffer
	s := NewStatusLine(&buf, false)

	s.Update("anything")
	s.Done()

	assert.Zero(t, buf.Len())
	assert.False(t, s.Enabled())
}

func TestStatusLineDone(t *testing.T) {
	var buf bytes.Buffer
	s := NewStatusLine(&buf, true)

	// Done before any update draws nothing.
	s.Done()
	assert.Zero(t, buf.Len())

	s.Update("pivoting")
	s.Done()
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))

	// A second Done is inert.
	n := buf.Len()
	s.Done()
	assert.Equal(t, n, buf.Len())
}

func TestStatusLineTruncatesLongMessages(t *testing.T) {
	var buf bytes.Buffer
	s := NewStatusLine(&buf, true)

	s.Update("%s", strings.Repeat("x", 100))
	assert.Len(t, buf.String(), 65+len("\x1b[65D"))
}
