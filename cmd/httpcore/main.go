package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"httpcore/internal/app"
	"httpcore/internal/config"
	"httpcore/internal/core"
	"httpcore/internal/wire"
)

var (
	configFile  = flag.String("config", "configs/httpcore.yaml", "config file path")
	logLevel    = flag.String("log-level", "info", "log level")
	watchConfig = flag.Bool("watch-config", false, "reload log level on config file changes")
)

func main() {
	flag.Parse()

	logVar := setupLogging(*logLevel)

	cfg, err := config.NewLoader(*configFile).Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	server, err := app.NewServer(cfg, demoHandler(cfg), slog.Default())
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if *watchConfig {
		wc := config.DefaultWatcherConfig()
		wc.OnChange = func(newCfg *config.Config) error {
			if lvl, ok := logLevels[strings.ToLower(newCfg.Logging.Level)]; ok {
				logVar.Set(lvl)
			}
			return nil
		}
		watcher, err := config.NewWatcher(*configFile, wc, slog.Default())
		if err != nil {
			slog.Error("failed to create config watcher", "error", err)
			os.Exit(1)
		}
		watcher.Start()
		defer watcher.Stop()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		slog.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		slog.Error("failed to stop server", "error", err)
		os.Exit(1)
	}
}

// demoHandler answers plain requests on / and streams a ticker with
// heartbeats on /events.
func demoHandler(cfg *config.Config) core.Handler {
	keepalive := time.Duration(cfg.SSE.KeepaliveInterval) * time.Second

	return func(ctx context.Context, req *wire.Request, st core.Streamer) (*wire.Response, error) {
		switch req.Path {
		case "/":
			return wire.TextResponse(200, "hello from httpcore\n"), nil

		case "/events":
			w, err := st.StartStream()
			if err != nil {
				return nil, err
			}
			go func() {
				defer w.Close()
				var heartbeat <-chan time.Time
				if keepalive > 0 {
					t := time.NewTicker(keepalive)
					defer t.Stop()
					heartbeat = t.C
				}
				for i := 1; i <= 10; i++ {
					ev := &core.SSEEvent{
						ID:   fmt.Sprintf("%d", i),
						Type: "tick",
						Data: fmt.Sprintf("count %d", i),
					}
					if err := w.SendEvent(ev); err != nil {
						return
					}
					select {
					case <-time.After(time.Second):
					case <-heartbeat:
						if err := w.SendKeepAlive(); err != nil {
							return
						}
					case <-ctx.Done():
						return
					}
				}
			}()
			return nil, nil

		default:
			return wire.TextResponse(404, "not found\n"), nil
		}
	}
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func setupLogging(level string) *slog.LevelVar {
	lvl, ok := logLevels[strings.ToLower(level)]
	if !ok {
		lvl = slog.LevelInfo
	}

	logVar := new(slog.LevelVar)
	logVar.Set(lvl)

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logVar,
	})))
	return logVar
}
