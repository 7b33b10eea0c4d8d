package main

import (
	"fmt"
	"log"
	"time"

	"risk-governance/internal/config"
	"risk-governance/internal/database"
	"risk-governance/internal/server"
	"risk-governance/internal/sweep"
)

func main() {
	cfg := config.Load()
	database.Init(cfg.DBDSN)

	// фоновый проход по просроченным запросам на доказательства
	stop := make(chan struct{})
	defer close(stop)
	go sweep.NewSweeper(database.DB).
		Run(time.Duration(cfg.SweepIntervalMinutes)*time.Minute, stop)

	r := server.NewRouter(cfg)

	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("starting server on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
