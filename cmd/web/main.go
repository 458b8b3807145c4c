package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gogoblin "github.com/monjuik/go-goblin"
)

func main() {
	configFile := flag.String("config", ".env", "Environment config file")
	flag.Parse()

	cfg, err := gogoblin.LoadConfig(*configFile)
	if err != nil {
		log := gogoblin.NewLogger("web")
		log.Fatal().Err(err).Msg("load config")
	}
	if err := gogoblin.SetupLogging(cfg.Log); err != nil {
		log := gogoblin.NewLogger("web")
		log.Fatal().Err(err).Msg("setup logging")
	}
	log := gogoblin.NewLogger("web")

	engine := gogoblin.NewEngineFromConfig(cfg)
	server := gogoblin.NewServer(engine)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Bool("indexer", cfg.HeliusAPIKey != "").Msg("listening")
		if err := server.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
