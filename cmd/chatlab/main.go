// Command chatlab runs the worker host behind a newline-delimited JSON
// transport over stdin/stdout: one worker.Request object per line in,
// interleaved worker.ProgressEvent and worker.Response objects per line
// out. The core (pkg/chatlab/worker) stays transport-agnostic; this
// binary is just one way to drive it.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/xunchahaha/ChatLab/pkg/chatlab/config"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/model"
	"github.com/xunchahaha/ChatLab/pkg/chatlab/worker"
)

var (
	configPath    = flag.String("config", "", "path to a settings file (JSON or YAML) overriding config.Default()")
	documentsRoot = flag.String("documents-root", "", "override the documents root directory")
	logLevel      = flag.String("log-level", "info", "zerolog level: debug, info, warn, error")
)

func main() {
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Str("app", "chatlab").Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load config")
		os.Exit(1)
	}
	if *documentsRoot != "" {
		cfg.DocumentsRoot = *documentsRoot
	}
	for _, dir := range []string{cfg.DatabasesDir(), cfg.TempDir(), cfg.MergedDir(), cfg.SettingsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error().Err(err).Str("dir", dir).Msg("failed to create directory")
			os.Exit(1)
		}
	}

	host := worker.NewHost(cfg, logger)
	defer host.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Info().Msg("shutting down")
		cancel()
	}()

	runREPL(ctx, host, logger)
}

// out serializes writes to stdout: concurrent requests run on their own
// goroutines (see below) but must not interleave partial JSON lines.
type out struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func (o *out) writeLine(v any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	o.w.Write(data)
	o.w.WriteByte('\n')
	o.w.Flush()
}

func runREPL(ctx context.Context, host *worker.Host, logger zerolog.Logger) {
	stdout := &out{w: bufio.NewWriter(os.Stdout)}
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var wg sync.WaitGroup
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req model.WorkerRequest
		if err := json.Unmarshal(line, &req); err != nil {
			logger.Warn().Err(err).Msg("malformed request line, skipping")
			continue
		}
		if req.ID == "" || req.Op == "" {
			continue
		}

		wg.Add(1)
		go func(req model.WorkerRequest) {
			defer wg.Done()
			resp := host.Submit(ctx, req, func(ev model.ProgressEvent) {
				stdout.writeLine(ev)
			})
			stdout.writeLine(resp)
		}(req)
	}
	if err := scanner.Err(); err != nil {
		logger.Error().Err(err).Msg("stdin read error")
	}
	wg.Wait()
	fmt.Fprintln(os.Stderr, "chatlab: input closed, exiting")
}
