package main

import (
	"fmt"
	"io"
	"os"

	"github.com/krisalay/api-cache/internal/bootstrap"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	Debug    bool
	NoPrefix bool
	LogStd   bool
	Backend  string
	DataPath string
)

var RootCmd = &cobra.Command{
	Use:   "apicache",
	Short: "A read-through cache for API responses.",
	Long: `A read-through cache for API responses, kept in memory and
persisted to a local store (bolt file, directory of JSON files, or memory).
Configuration is read from APICACHE_* environment variables.`,
	SilenceUsage: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "start with debug logging")
	RootCmd.PersistentFlags().BoolVar(&NoPrefix, "no-prefix", false, "disable env prefix")
	RootCmd.PersistentFlags().BoolVar(&LogStd, "log-std", false, "also log to stdout when logging to a file")
	RootCmd.PersistentFlags().StringVar(&Backend, "backend", "", "override the persistent backend (memory, bolt or fs)")
	RootCmd.PersistentFlags().StringVar(&DataPath, "data", "", "override the bolt file or fs directory")
}

var logFile io.Closer

// Init loads the config and builds the cache. reg may be nil.
func Init(cmd *cobra.Command, reg prometheus.Registerer) (*bootstrap.Runtime, error) {
	c, err := bootstrap.LoadConfig(NoPrefix)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("backend") {
		c.Backend = Backend
	}
	if cmd.Flags().Changed("data") {
		c.DataPath = DataPath
	}
	if err := bootstrap.CheckConfig(c); err != nil {
		return nil, err
	}
	if reg != nil {
		c.Metrics = true
	}

	if logFile, err = bootstrap.InitLog(log.StandardLogger(), c.Log, Debug, LogStd); err != nil {
		return nil, err
	}
	log.Debugf("config: %+v", c)

	return bootstrap.Init(c, log.StandardLogger(), reg)
}

func Release(r *bootstrap.Runtime) {
	r.Release()
	if logFile != nil {
		_ = logFile.Close()
	}
}
