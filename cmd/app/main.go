package main

import (
	"context"
	"flag"
	"log"
	"os"

	"TrendScanner/internal/di"
	"TrendScanner/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	once := flag.Bool("once", false, "run a single scan, print the table and exit")
	csvPath := flag.String("csv", "", "with -once, also write the records to this CSV file")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if *once {
		err = app.RunOnce(context.Background(), *csvPath, os.Stdout)
	} else {
		log.Printf("env=%s source=%s preset=%s tickers=%d",
			cfg.Environment, cfg.MarketData.Source, cfg.Scanner.Preset, len(cfg.Scanner.Tickers))
		err = app.Run(context.Background())
	}
	if err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
