package main

import (
	"flag"
	"fmt"
	"log"
	"mesh_relay/internal/server"
	"os"
	"time"
)

func main() {
	var node, name, location, text, priority string
	var timeout time.Duration
	flag.StringVar(&node, "node", "127.0.0.1:5001", "First relay node host:port")
	flag.StringVar(&name, "name", "", "Sender name")
	flag.StringVar(&location, "location", "", "Sender location")
	flag.StringVar(&text, "text", "", "Emergency message text")
	flag.StringVar(&priority, "priority", "MEDIUM", "HIGH, MEDIUM or LOW")
	flag.DurationVar(&timeout, "timeout", server.DefaultSendTimeout, "Connect and write timeout")
	flag.Parse()

	msg, err := server.Compose(name, location, text, priority, time.Now())
	if err != nil {
		log.Fatalf("[ERROR] %v", err)
	}

	log.Printf("[INFO] Connecting to first node at %s...", node)
	if err := server.Send(node, msg, timeout); err != nil {
		log.Printf("[ERROR] Failed to send message: %v", err)
		os.Exit(1)
	}
	log.Printf("[SUCCESS] Message sent, priority %s", msg.Priority)
	fmt.Println(msg.MessageID)
}
