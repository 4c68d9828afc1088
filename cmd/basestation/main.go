package main

import (
	"context"
	"flag"
	"log"
	"mesh_relay/internal/config"
	"mesh_relay/internal/server"
	"mesh_relay/internal/utils"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	var basePath, messagesFile string
	var port int
	flag.StringVar(&basePath, "prefix", "", "Config file base path")
	flag.IntVar(&port, "port", 0, "Listen port (overrides config)")
	flag.StringVar(&messagesFile, "messages", "", "Messages file (overrides config)")
	flag.Parse()

	cfg, err := config.LoadCollectorConfig(basePath)
	if err != nil {
		log.Fatalf("Load config failed: %v", err)
	}
	if port != 0 {
		cfg.Port = port
	}
	if messagesFile != "" {
		cfg.MessagesFile = messagesFile
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	logx := utils.NewManager(cfg.NodeName, cfg.Log)
	defer logx.Sync()

	collector := server.NewCollector(cfg, logx.Logger(), os.Stdout)
	if err := collector.Listen(); err != nil {
		log.Fatalf("Port %d is already in use: %v", cfg.Port, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- collector.Run(ctx)
	}()

	select {
	case <-stop:
		log.Println("Base station shutting down...")
		cancel()
		<-serverErr
	case err := <-serverErr:
		cancel()
		if err != nil {
			logx.Sync()
			log.Fatalf("Base station failed: %v", err)
		}
	}

	log.Printf("All messages saved to: %s", cfg.MessagesFile)
}
