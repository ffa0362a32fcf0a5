package plan

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenLimit(t *testing.T) {
	assert.Equal(t, int32(5000), tokenLimit(DefaultMaxOutputTokens))
	assert.Equal(t, int32(0), tokenLimit(-1))
	assert.Equal(t, int32(math.MaxInt32), tokenLimit(math.MaxInt32))
	assert.Equal(t, int32(math.MaxInt32), tokenLimit(math.MaxInt32+1))
	assert.Equal(t, int32(math.MaxInt32), tokenLimit(math.MaxInt))
}
