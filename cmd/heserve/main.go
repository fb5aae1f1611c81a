package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hebench/api"
	"hebench/report"
	"hebench/utils"
)

func main() {
	var addr string
	var storeKind string
	var dirPath string

	flag.StringVar(&addr, "addr", ":8080", "Listen address")
	flag.StringVar(&storeKind, "store", "s3", "Where the batches live: s3 or dir")
	flag.StringVar(&dirPath, "dir", ".", "Local batch directory when -store=dir")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store report.Store
	switch storeKind {
	case "s3":
		s, err := report.NewS3Store(ctx, utils.Bucket())
		if err != nil {
			log.Fatalf("Failed to configure S3: %v", err)
		}
		store = s
		log.Printf("Serving batches from s3://%s", utils.Bucket())
	case "dir":
		store = report.NewDirStore(dirPath)
		log.Printf("Serving batches from %s", dirPath)
	default:
		log.Fatalf("Unknown store %q (s3 or dir)", storeKind)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(store, log.Default()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
