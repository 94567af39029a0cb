package main

import (
	"timer-delivery-engine/internal/app/server"
	"timer-delivery-engine/internal/config"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.Server.LogLevel)
	server.Run(cfg)
}
