package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuccessFailureMarkers(t *testing.T) {
	// Styling depends on the environment; the markers and message must
	// survive either way.
	assert.True(t, strings.Contains(Success("backed up 2 disks"), "✓ backed up 2 disks"))
	assert.True(t, strings.Contains(Failure("borg failed"), "✗ borg failed"))
}
