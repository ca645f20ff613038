package secretkey

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexKey = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestNew_Format(t *testing.T) {
	key, err := New()
	require.NoError(t, err)
	assert.Len(t, key, Length)
	assert.Regexp(t, hexKey, key)
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		key, err := New()
		require.NoError(t, err)
		_, dup := seen[key]
		require.False(t, dup, "duplicate key generated: %s", key)
		seen[key] = struct{}{}
	}
}
