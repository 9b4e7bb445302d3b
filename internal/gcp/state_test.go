package gcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeState(t *testing.T) {
	state, err := decodeState([]byte(`{"queue": [{"sourceId": "a"}], "cursor": 7, "processed": null}`))
	require.NoError(t, err)
	assert.Equal(t, 1, state.Cursor)
	assert.NotNil(t, state.Processed)
	assert.NotNil(t, state.GeocodeCache)

	state, err = decodeState([]byte("  "))
	require.NoError(t, err)
	assert.Empty(t, state.Queue)

	_, err = decodeState([]byte("{not json"))
	assert.Error(t, err)
}

func TestLeaseAvailable(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, lease{}.available("me", now))
	assert.True(t, lease{Owner: "me", ExpiresAt: now.Add(time.Minute)}.available("me", now))
	assert.False(t, lease{Owner: "other", ExpiresAt: now.Add(time.Minute)}.available("me", now))
	assert.True(t, lease{Owner: "other", ExpiresAt: now}.available("me", now))
}
