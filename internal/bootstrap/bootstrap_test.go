package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/krisalay/api-cache/internal/conf"
	"github.com/krisalay/api-cache/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	c, err := LoadConfig(false)
	require.NoError(t, err)
	assert.Equal(t, conf.DefaultConfig(), c)
	assert.Equal(t, "@api_cache:", c.KeyPrefix)
	assert.Equal(t, 5*time.Minute, c.DefaultTTL)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("APICACHE_BACKEND", "FS")
	t.Setenv("APICACHE_DATA_PATH", "/tmp/cache")
	t.Setenv("APICACHE_DEFAULT_TTL", "90s")
	t.Setenv("APICACHE_WRITE_MODE", "back")
	t.Setenv("APICACHE_QUEUE_ENABLE", "true")
	t.Setenv("APICACHE_QUEUE_RATE", "2.5")
	t.Setenv("APICACHE_LOG_LEVEL", "debug")

	c, err := LoadConfig(false)
	require.NoError(t, err)
	assert.Equal(t, conf.BackendFS, c.Backend)
	assert.Equal(t, "/tmp/cache", c.DataPath)
	assert.Equal(t, 90*time.Second, c.DefaultTTL)
	assert.Equal(t, conf.WriteBack, c.WriteMode)
	assert.True(t, c.Queue.Enable)
	assert.Equal(t, 2.5, c.Queue.Rate)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoadConfigNoPrefix(t *testing.T) {
	t.Setenv("BACKEND", "memory")
	t.Setenv("APICACHE_BACKEND", "fs")

	c, err := LoadConfig(true)
	require.NoError(t, err)
	assert.Equal(t, conf.BackendMemory, c.Backend)
}

func TestLoadConfigRejects(t *testing.T) {
	for name, env := range map[string][2]string{
		"backend":    {"APICACHE_BACKEND", "redis"},
		"write mode": {"APICACHE_WRITE_MODE", "sideways"},
		"ttl":        {"APICACHE_DEFAULT_TTL", "-1s"},
		"duration":   {"APICACHE_DEFAULT_TTL", "soon"},
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			_, err := LoadConfig(false)
			assert.Error(t, err)
		})
	}
}

func TestInitLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "apicache.log")
	l := logrus.New()

	closer, err := InitLog(l, conf.LogConfig{Level: "warn", Format: "json", File: path, MaxSize: 1}, false, false)
	require.NoError(t, err)
	require.NotNil(t, closer)

	l.Info("hidden")
	l.Warn("shown")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"shown"`)
	assert.NotContains(t, string(b), "hidden")
}

func TestInitLogDebugOverridesLevel(t *testing.T) {
	l := logrus.New()
	closer, err := InitLog(l, conf.LogConfig{Level: "error"}, true, false)
	require.NoError(t, err)
	assert.Nil(t, closer)
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
}

func TestInitLogRejects(t *testing.T) {
	_, err := InitLog(logrus.New(), conf.LogConfig{Level: "loud"}, false, false)
	assert.Error(t, err)
	_, err = InitLog(logrus.New(), conf.LogConfig{Format: "xml"}, false, false)
	assert.Error(t, err)
}

func TestInitBoltSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	c := conf.DefaultConfig()
	c.DataPath = filepath.Join(t.TempDir(), "nested", "cache.db")

	r, err := Init(c, logger, nil)
	require.NoError(t, err)
	r.Cache.Set(ctx, "user:1", map[string]string{"name": "ada"}, time.Hour)
	r.Release()

	r, err = Init(c, logger, nil)
	require.NoError(t, err)
	defer r.Release()
	assert.Equal(t, 0, r.Cache.Size())
	_, ok := r.Cache.Get(ctx, "user:1")
	assert.True(t, ok)
}

func TestInitWiresQueueAndMetrics(t *testing.T) {
	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	reg := prometheus.NewRegistry()
	c := conf.DefaultConfig()
	c.Backend = conf.BackendFS
	c.DataPath = t.TempDir()
	c.WriteMode = conf.WriteBack
	c.Metrics = true
	c.Queue.Enable = true

	r, err := Init(c, logger, reg)
	require.NoError(t, err)
	defer r.Release()
	require.NotNil(t, r.Queue)
	require.NotNil(t, r.Metrics)

	v, err := r.Cache.FetchWithCache(ctx, "k", func(context.Context) (any, error) { return "v", nil }, types.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
