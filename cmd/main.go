// Package main is the production entry point for the TuneCast music player.
//
// TuneCast is a cross-platform music player with clean architecture:
// - Event-driven communication (no callbacks)
// - Dependency injection for testability
// - MVP pattern for UI decoupling
// - Repository pattern for data persistence
//
// Build:
//
//	go build -o build/tunecast ./cmd
//
// Run:
//
//	./build/tunecast
package main

import (
	"fmt"
	"log"

	"github.com/tunecast/tunecast/internal/app"
)

func main() {
	// Create default configuration
	config := app.DefaultConfig()

	// Create the application with dependency injection
	application, err := app.NewApplication(config)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Ensure a graceful shutdown
	defer func() {
		fmt.Println("\nShutting down...")
		application.Shutdown()
		fmt.Println("Shutdown complete")
	}()

	// Run application (blocks until the window closed)
	application.Run()

	fmt.Println("Application exited cleanly")
}
