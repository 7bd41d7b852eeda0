package server

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kalantar81/window-counter/pkg/config"
	"github.com/Kalantar81/window-counter/pkg/logger"
)

// Main is the entry point for the window-counter server binary
func Main() {
	// Check for help flag early before instance check
	if len(os.Args) > 1 && (os.Args[len(os.Args)-1] == "-h" || os.Args[len(os.Args)-1] == "--help") {
		fs := flag.NewFlagSet("server", flag.ContinueOnError)
		fs.String("addr", ":3000", "Server address")
		fs.String("config", "", "Config file path (optional)")
		fs.String("cert", "", "TLS certificate file (leave empty for HTTP behind a proxy)")
		fs.String("key", "", "TLS key file (leave empty for HTTP behind a proxy)")
		fs.Bool("tls", false, "Enable TLS")
		fs.String("target-tab", "map", "Tab location eligible for location routing")
		fs.String("log-level", "info", "Log level: debug, info, warn, error")
		fs.String("log-format", "text", "Log format: text or json")
		printHelp(fs)
		return
	}

	// Handle subcommands: start|stop|restart|status (default: start)
	command := "start"
	if len(os.Args) > 1 {
		first := os.Args[1]
		if first == "start" || first == "stop" || first == "restart" || first == "status" {
			command = first
			// Remove subcommand from args before flag parsing
			os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
		}
	}

	instanceMgr := NewInstanceManager()

	if command != "start" {
		switch command {
		case "status":
			if running, pid := instanceMgr.IsRunning(); running {
				fmt.Printf("Server running (PID %d)\n", pid)
			} else {
				fmt.Println("Server not running")
			}
			return
		case "stop":
			if err := instanceMgr.Kill(); err != nil {
				fmt.Printf("Stop failed: %v\n", err)
			} else {
				fmt.Println("Server stopped")
			}
			return
		case "restart":
			_ = instanceMgr.Kill() // Ignore error; may not be running
			fmt.Println("Restarting server...")
		}
	}

	// Enforce single instance before starting
	if command == "start" {
		if running, pid := instanceMgr.IsRunning(); running {
			fmt.Printf("Server already running (PID %d)\n", pid)
			return
		}
	}

	// Parse command line flags
	addr := flag.String("addr", ":3000", "Server address")
	configPath := flag.String("config", "", "Config file path (optional)")
	certFile := flag.String("cert", "", "TLS certificate file (leave empty for HTTP behind a proxy)")
	keyFile := flag.String("key", "", "TLS key file (leave empty for HTTP behind a proxy)")
	useTLS := flag.Bool("tls", false, "Enable TLS")
	targetTab := flag.String("target-tab", "map", "Tab location eligible for location routing")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	// Initialize structured logger
	logger.Init(logger.LogLevel(*logLevel), *logFormat)
	log := logger.Get()

	log.InfoWith("server starting", "version", "1.0.0")

	// Load configuration (from file or defaults)
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.ErrorWithErr("failed to load configuration", err)
		return
	}

	// Override config with command-line flags if provided
	if *addr != ":3000" {
		cfg.Address = *addr
	}
	if *targetTab != "map" {
		cfg.Routing.TargetTab = *targetTab
	}
	if *certFile != "" {
		cfg.TLS.CertFile = *certFile
	}
	if *keyFile != "" {
		cfg.TLS.KeyFile = *keyFile
	}
	if *useTLS {
		cfg.TLS.Enabled = true
	}

	log.InfoWith("configuration loaded", "address", cfg.Address, "targetTab", cfg.Routing.TargetTab, "tls", cfg.TLS.Enabled)

	srv := NewServer(cfg)

	// Write PID file for instance management
	if err := instanceMgr.WritePID(); err != nil {
		log.WarnWith("failed to write PID file", "error", err)
	}
	defer instanceMgr.RemovePID()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	// Start server in a goroutine
	errorChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errorChan <- err
		}
	}()

	log.InfoWith("server is running", "press", "Ctrl+C to stop")

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		log.InfoWith("received signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.ErrorWithErr("error during shutdown", err)
		}
		log.InfoWith("server stopped")

	case err := <-errorChan:
		if err != nil {
			log.ErrorWithErr("server encountered fatal error", err)
		}
		log.InfoWith("server stopped")
	}
}

// printHelp displays help information for the server
func printHelp(fs *flag.FlagSet) {
	fmt.Print(`window-counter server - Usage:

Commands:
  start              Start the server (default if no command given)
  stop               Stop the running server
  restart            Restart the server
  status             Show server status

Flags:
`)
	fs.PrintDefaults()
	fmt.Print(`
Examples:
  ./bin/windowcounter                        # Start on default port 3000
  ./bin/windowcounter -addr 127.0.0.1:8081   # Start on custom port
  ./bin/windowcounter -target-tab map        # Route locations to "map" viewers
  ./bin/windowcounter stop                   # Stop the server
  ./bin/windowcounter status                 # Check if server is running
`)
}
