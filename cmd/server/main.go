package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fanren-sync/internal/archive"
	"fanren-sync/internal/server"
)

func main() {
	addr := getenvDefault("SYNC_ADDR", ":8000")

	build := server.BuildInfo{
		Version: getenvDefault("SYNC_VERSION", "dev"),
		Commit:  getenvDefault("SYNC_COMMIT", "unknown"),
	}

	// Safety: refuse to start without a secret, otherwise every caller
	// would be rejected (or worse, an empty secret would be guessable).
	secret := os.Getenv("SYNC_PASSWORD")
	if secret == "" {
		log.Printf("service=server msg=%q", "missing SYNC_PASSWORD")
		os.Exit(1)
	}

	store, err := archive.New(
		getenvDefault("SYNC_DATA_DIR", "./data"),
		os.Getenv("SYNC_NAME_FIELD"),
	)
	if err != nil {
		log.Printf("service=server msg=%q err=%v", "storage_init_failed", err)
		os.Exit(1)
	}

	backup, err := buildBackupManager(store.Root())
	if err != nil {
		log.Printf("service=server msg=%q err=%v", "backup_init_failed", err)
		os.Exit(1)
	}

	srv := server.New(server.Config{
		Addr:   addr,
		Secret: secret,
		Store:  store,
		Backup: backup,
		Build:  build,
	})

	if backup != nil {
		backup.Start()
		defer backup.Stop()
	}

	// Start the HTTP server in a background goroutine so we can listen
	// for OS signals while it runs.
	errCh := make(chan error, 1)
	go func() {
		log.Printf("service=server msg=%q addr=%s data_dir=%s version=%s commit=%s",
			"starting", addr, store.Root(), build.Version, build.Commit)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Block until either a shutdown signal is received or the server
	// encounters an error.
	select {
	case sig := <-sigCh:
		log.Printf("service=server msg=%q signal=%s", "shutting_down", sig.String())
		// Give the server 5 seconds to finish in-flight requests.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("service=server msg=%q err=%v", "shutdown_error", err)
			os.Exit(1)
		}
		log.Printf("service=server msg=%q", "shutdown_complete")
	case err := <-errCh:
		if err != nil {
			log.Printf("service=server msg=%q err=%v", "server_error", err)
			os.Exit(1)
		}
	}
}

// buildBackupManager wires the optional storage mirror. Returns nil when
// backups are disabled.
func buildBackupManager(root string) (*server.BackupManager, error) {
	if getenvDefault("SYNC_BACKUP_ENABLED", "false") != "true" {
		return nil, nil
	}

	interval, err := time.ParseDuration(getenvDefault("SYNC_BACKUP_INTERVAL", "24h"))
	if err != nil {
		return nil, err
	}

	client, bucket, err := server.NewMinioClient()
	if err != nil {
		return nil, err
	}

	return server.NewBackupManager(server.BackupConfig{
		Enabled:  true,
		Interval: interval,
		Bucket:   bucket,
		Prefix:   getenvDefault("SYNC_S3_PREFIX", "archives"),
	}, client, root), nil
}

// getenvDefault reads an environment variable and returns a default value
// if not set.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
