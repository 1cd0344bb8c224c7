package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hostelpass/internal/admin"
	"hostelpass/internal/auth"
	"hostelpass/internal/gateway"
	"hostelpass/internal/notify"
	"hostelpass/internal/parent"
	"hostelpass/internal/qr"
	"hostelpass/internal/shared"
	"hostelpass/internal/student"
	"hostelpass/internal/sweep"
	"hostelpass/internal/warden"
)

func main() {
	log.Println("INFO: Starting HostelPass server...")

	shared.LoadEnv(".env")

	cfg, err := shared.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	client, db, err := shared.ConnectMongoDB(&cfg.MongoDB)
	if err != nil {
		log.Fatalf("FATAL: Failed to connect to MongoDB: %v", err)
	}
	defer shared.DisconnectMongoDB(client)

	if err := shared.EnsureIndexes(context.Background(), db); err != nil {
		log.Fatalf("FATAL: Failed to create indexes: %v", err)
	}

	mailer := notify.NewSender(cfg.SMTP)
	encoder := qr.NewPNGEncoder()

	services := &gateway.Services{
		Auth:    auth.NewService(db, cfg.Security, mailer),
		Student: student.NewService(db, encoder, mailer),
		Parent:  parent.NewService(db, mailer),
		Warden:  warden.NewService(db, encoder, mailer),
		Admin:   admin.NewService(db, cfg.Security, mailer),
	}

	router := gateway.SetupRoutes(services, cfg.CORS)

	// The expiry sweeper is owned by the process lifecycle: started once here,
	// cancelled on shutdown.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweeper := sweep.NewSweeper(db, cfg.Sweep.Interval)
	go sweeper.Run(sweepCtx)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("INFO: Listening on port %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("FATAL: HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("INFO: Shutting down...")

	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: HTTP shutdown error: %v", err)
	}

	log.Println("INFO: Server stopped.")
}
