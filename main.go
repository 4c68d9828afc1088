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
	var basePath, name, neighbors string
	var port int
	flag.StringVar(&basePath, "prefix", "", "Config file base path")
	flag.StringVar(&name, "name", "", "Node name (overrides config)")
	flag.IntVar(&port, "port", 0, "Listen port (overrides config)")
	flag.StringVar(&neighbors, "neighbors", "", "Ordered neighbor list host:port,host:port (overrides config)")
	flag.Parse()

	// Load MainConfig
	cfg, err := config.LoadMainConfig(basePath)
	if err != nil {
		log.Fatalf("Load config failed: %v", err)
	}
	if name != "" {
		cfg.NodeName = name
	}
	if port != 0 {
		cfg.Port = port
	}
	if neighbors != "" {
		cfg.Neighbors, err = config.ParseNeighbors(neighbors)
		if err != nil {
			log.Fatalf("Parse neighbors failed: %v", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	logx := utils.NewManager(cfg.NodeName, cfg.Log)
	defer logx.Sync()

	node, err := server.NewNode(cfg, logx.Logger())
	if err != nil {
		log.Fatalf("Create node failed: %v", err)
	}
	if err := node.Listen(); err != nil {
		log.Fatalf("Port %d is unavailable: %v", cfg.Port, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- node.Run(ctx)
	}()

	select {
	case <-stop:
		log.Println("Stopping relay node...")
		cancel()
		<-serverErr
	case err := <-serverErr:
		cancel()
		if err != nil {
			logx.Sync()
			log.Fatalf("Relay node failed: %v", err)
		}
	}

	log.Println("Relay node stopped")
}
