package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHumanReadableSize(t *testing.T) {
	assert.Equal(t, "0 B", humanReadableSize(0))
	assert.Equal(t, "999 B", humanReadableSize(999))
	assert.Equal(t, "1.0 kB", humanReadableSize(1000))
	assert.Equal(t, "1.5 MB", humanReadableSize(1_500_000))
}
