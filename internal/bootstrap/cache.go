package bootstrap

import (
	"os"
	"path/filepath"

	cache "github.com/krisalay/api-cache"
	"github.com/krisalay/api-cache/internal/conf"
	"github.com/krisalay/api-cache/metrics"
	"github.com/krisalay/api-cache/queue"
	"github.com/krisalay/api-cache/storage"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// Runtime is everything built from one Config. Release tears it down in
// reverse order.
type Runtime struct {
	Config  *conf.Config
	Backend storage.Backend
	Queue   *queue.Queue
	Metrics *metrics.Prometheus
	Cache   *cache.Cache
}

// OpenBackend builds the persistent tier named by c.Backend.
func OpenBackend(c *conf.Config) (storage.Backend, error) {
	switch c.Backend {
	case conf.BackendMemory:
		return storage.NewMemory(), nil
	case conf.BackendBolt:
		if dir := filepath.Dir(c.DataPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrapf(err, "failed to create data dir %s", dir)
			}
		}
		return storage.OpenBolt(c.DataPath, c.Bucket)
	case conf.BackendFS:
		return storage.NewOsFS(c.DataPath)
	default:
		return nil, errors.Errorf("unknown backend %q", c.Backend)
	}
}

/*
Init opens the backend and builds the cache described by c. reg receives the
metrics when c.Metrics is set; nil means the default registerer.
*/
func Init(c *conf.Config, logger log.FieldLogger, reg prometheus.Registerer) (*Runtime, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	backend, err := OpenBackend(c)
	if err != nil {
		return nil, err
	}
	logger.Infof("cache backend: %s %s", c.Backend, c.DataPath)

	r := &Runtime{Config: c, Backend: backend}
	opts := []cache.Option{
		cache.WithLogger(logger.WithField("component", "apicache")),
		cache.WithDefaultTTL(c.DefaultTTL),
		cache.WithPrefix(c.KeyPrefix),
		cache.WithShards(c.Shards),
	}
	if c.WriteMode == conf.WriteBack {
		opts = append(opts, cache.WithWriteBack(c.WriteBackBuffer))
	}
	if c.ScanPersisted {
		opts = append(opts, cache.WithScanPersisted())
	}
	if c.Metrics {
		if r.Metrics, err = metrics.NewPrometheus(reg, metrics.DefaultNamespace); err != nil {
			_ = backend.Close()
			return nil, err
		}
		opts = append(opts, cache.WithMetrics(r.Metrics))
	}
	if c.Queue.Enable {
		r.Queue = queue.New(queue.Options{
			Concurrency: c.Queue.Concurrency,
			Timeout:     c.Queue.Timeout,
			Rate:        c.Queue.Rate,
			Burst:       c.Queue.Burst,
			Retries:     c.Queue.Retries,
		}, logger.WithField("component", "queue"))
		opts = append(opts, cache.WithQueue(r.Queue))
	}

	r.Cache = cache.New(backend, opts...)
	return r, nil
}

// Release flushes the cache and closes what Init opened.
func (r *Runtime) Release() {
	r.Cache.Close()
	if r.Queue != nil {
		r.Queue.Close()
	}
	if err := r.Backend.Close(); err != nil {
		log.Errorf("failed to close cache backend: %+v", err)
	}
}
