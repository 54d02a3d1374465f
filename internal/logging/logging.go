package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"rimcity-link/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	mu     sync.Mutex
	writer io.Writer = os.Stdout
	file   *rotatingFile
)

// Init configures the global zerolog logger. When cfg.File is set, output is
// teed to a rotating file next to stdout.
func Init(cfg config.LogConfig) {
	level := parseLevel(cfg.Level)

	var console io.Writer = os.Stdout
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	mu.Lock()
	if file != nil {
		_ = file.Close()
		file = nil
	}
	out := console
	var plain io.Writer = os.Stdout
	var fileErr error
	if path := strings.TrimSpace(cfg.File); path != "" {
		if fw, err := newRotatingFile(path, cfg.MaxMB); err == nil {
			file = fw
			out = zerolog.MultiLevelWriter(console, fw)
			plain = io.MultiWriter(os.Stdout, fw)
		} else {
			fileErr = err
		}
	}
	writer = plain
	mu.Unlock()

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(out).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
	if fileErr != nil {
		log.Warn().Err(fileErr).Str("path", cfg.File).Msg("log file disabled")
	}
}

// Writer is the raw destination used by non-zerolog loggers (httplog).
func Writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return writer
}

func parseLevel(v string) zerolog.Level {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return zerolog.InfoLevel
	}
	parsed, err := zerolog.ParseLevel(v)
	if err != nil {
		return zerolog.InfoLevel
	}
	return parsed
}
