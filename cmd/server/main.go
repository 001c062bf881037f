package main

import (
	"github.com/Jacobgokul/Pinge/internal/config"
	"github.com/Jacobgokul/Pinge/internal/db"
	clog "github.com/Jacobgokul/Pinge/internal/log"
	"github.com/Jacobgokul/Pinge/internal/server"
	"github.com/Jacobgokul/Pinge/internal/ws"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()
	clog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config validate")
	}

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	registry := ws.NewRegistry()
	r := server.SetupRouter(cfg, gdb, registry)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server run")
	}
}
