package engine

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/krisalay/api-cache/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCacheEngineDefaults(t *testing.T) {
	e := NewCacheEngine(nil, 0, nil, nil, nil)

	require.NotNil(t, e.Clock)
	require.NotNil(t, e.Expiration)
	require.NotNil(t, e.Metrics)
	require.NotNil(t, e.Log)
	assert.Equal(t, types.DefaultTTL, e.DefaultTTL)
}

func TestNewEntryUsesDefaultTTL(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.UnixMilli(10_000))
	e := NewCacheEngine(mock, 0, nil, nil, nil)

	ent := e.NewEntry("v", 0)
	assert.Equal(t, int64(10_000), ent.Timestamp)
	assert.Equal(t, int64(10_000)+types.DefaultTTL.Milliseconds(), ent.ExpiresAt)

	ent = e.NewEntry("v", -time.Second)
	assert.Equal(t, int64(10_000)+types.DefaultTTL.Milliseconds(), ent.ExpiresAt)
}

func TestIsExpiredFollowsClock(t *testing.T) {
	mock := clock.NewMock()
	e := NewCacheEngine(mock, time.Minute, nil, nil, nil)

	ent := e.NewEntry("v", time.Second)
	assert.False(t, e.IsExpired(ent))

	mock.Add(999 * time.Millisecond)
	assert.False(t, e.IsExpired(ent))

	mock.Add(time.Millisecond)
	assert.True(t, e.IsExpired(ent))
}
