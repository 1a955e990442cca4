package bootstrap

import (
	"strings"

	"github.com/caarlos0/env/v9"
	"github.com/krisalay/api-cache/internal/conf"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const EnvPrefix = "APICACHE_"

// LoadConfig starts from conf.DefaultConfig and applies the environment on top.
func LoadConfig(noPrefix bool) (*conf.Config, error) {
	c := conf.DefaultConfig()
	prefix := EnvPrefix
	if noPrefix {
		prefix = ""
	}
	log.Debugf("load config from env with prefix: %q", prefix)
	if err := env.ParseWithOptions(c, env.Options{
		Prefix: prefix,
	}); err != nil {
		return nil, errors.Wrap(err, "load config from env")
	}
	if err := CheckConfig(c); err != nil {
		return nil, err
	}
	return c, nil
}

// CheckConfig normalizes c and rejects values the cache cannot run with.
func CheckConfig(c *conf.Config) error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case conf.BackendMemory:
	case conf.BackendBolt, conf.BackendFS:
		if c.DataPath == "" {
			return errors.Errorf("backend %s needs a data path", c.Backend)
		}
	default:
		return errors.Errorf("unknown backend %q (want memory, bolt or fs)", c.Backend)
	}

	c.WriteMode = strings.ToLower(strings.TrimSpace(c.WriteMode))
	switch c.WriteMode {
	case "", conf.WriteThrough:
		c.WriteMode = conf.WriteThrough
	case conf.WriteBack:
	default:
		return errors.Errorf("unknown write mode %q (want through or back)", c.WriteMode)
	}

	if c.DefaultTTL < 0 {
		return errors.Errorf("default ttl must not be negative, got %s", c.DefaultTTL)
	}
	if c.Queue.Rate < 0 {
		return errors.Errorf("queue rate must not be negative, got %v", c.Queue.Rate)
	}
	return nil
}
