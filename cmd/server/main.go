package main

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"video-parser/internal/app"
	"video-parser/internal/server"
)

func main() {
	// Initialize zerolog logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	a, err := app.New("", nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing application")
	}
	defer a.Close()

	// Create and run server
	srv := server.NewServer(a.Config, a.Registry, a.Monitor)
	srv.SetLogger(a.Logger)
	if err := srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
}
