package main

import (
	"traffic-decision-engine/internal/app/edge"
	"traffic-decision-engine/internal/config"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.Server.LogLevel)
	edge.Run(cfg)
}
