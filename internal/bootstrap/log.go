package bootstrap

import (
	"io"
	"os"

	"github.com/krisalay/api-cache/internal/conf"
	"github.com/natefinch/lumberjack"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

/*
InitLog configures l from c. With a log file set, output goes to a rotating
file (and to stdout as well when debug or logStd is set). The returned closer
releases the file and is nil when there is none.
*/
func InitLog(l *logrus.Logger, c conf.LogConfig, debug, logStd bool) (io.Closer, error) {
	level := logrus.InfoLevel
	if c.Level != "" {
		var err error
		if level, err = logrus.ParseLevel(c.Level); err != nil {
			return nil, errors.Wrap(err, "parse log level")
		}
	}
	if debug {
		level = logrus.DebugLevel
	}
	l.SetLevel(level)
	l.SetReportCaller(debug)

	switch c.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{
			ForceColors:               true,
			EnvironmentOverrideColors: true,
			TimestampFormat:           "2006-01-02 15:04:05",
			FullTimestamp:             true,
		})
	default:
		return nil, errors.Errorf("unknown log format %q (want text or json)", c.Format)
	}

	if c.File == "" {
		return nil, nil
	}
	file := &lumberjack.Logger{
		Filename:   c.File,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   c.Compress,
	}
	var w io.Writer = file
	if debug || logStd {
		w = io.MultiWriter(os.Stdout, file)
	}
	l.SetOutput(w)
	l.Debugf("logging to %s", c.File)
	return file, nil
}
