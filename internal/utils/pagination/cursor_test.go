package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	ts := time.Date(2026, 6, 20, 18, 30, 0, 0, time.UTC)
	token, err := Encode(At("user-7", ts))
	require.NoError(t, err)

	c, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", c.ID)
	assert.True(t, c.Time().Equal(ts))
	assert.False(t, c.Empty())
}

func TestDecode_EmptyAndGarbage(t *testing.T) {
	c, err := Decode("")
	require.NoError(t, err)
	assert.True(t, c.Empty())

	_, err = Decode("%%%")
	assert.Error(t, err)
}

func TestLimit(t *testing.T) {
	assert.Equal(t, 20, Limit(0, 20, 50))
	assert.Equal(t, 50, Limit(500, 20, 50))
	assert.Equal(t, 7, Limit(7, 20, 50))
}
