// voicechat - browser voice chat: speech in, chat completion, speech out
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-voicechat/internal/config"
	"github.com/teslashibe/go-voicechat/internal/log"
	"github.com/teslashibe/go-voicechat/pkg/session"
	"github.com/teslashibe/go-voicechat/pkg/web"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.LogLevel)
	logger := log.L()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	p, err := newProviders(ctx, cfg, logger)
	if err != nil {
		log.Error("provider setup failed", "error", err)
		os.Exit(1)
	}
	defer p.Close()

	sessions := session.NewManager(p.factory(cfg, logger),
		session.WithIdleTimeout(cfg.IdleTimeout),
		session.WithMaxSessions(cfg.MaxSessions),
		session.WithLogger(logger),
	)
	go sessions.Run(ctx)

	server := web.NewServer(sessions, p.webOptions(cfg, logger)...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info("voicechat started",
		"addr", cfg.Addr,
		"stt", p.sttName,
		"tts", p.ttsName,
		"model", cfg.ChatModel,
		"history_turns", cfg.HistoryTurns,
	)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error("web server failed", "error", err)
			os.Exit(1)
		}
	}

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("web server shutdown", "error", err)
	}
}
