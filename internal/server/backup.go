// backup.go - Scheduled off-site mirror of the storage root.
//
// When enabled, every archive file is periodically uploaded to an
// S3-compatible bucket. This is disaster recovery for a single-node
// deployment, not versioning: objects are overwritten in place and the
// filesystem stays the source of truth.
package server

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// BackupConfig contains configuration for the backup mirror.
type BackupConfig struct {
	Enabled  bool          // Enable the scheduled mirror
	Interval time.Duration // Mirror interval (e.g. 24h for daily)
	Bucket   string        // Target bucket
	Prefix   string        // Object key prefix inside the bucket
	Timeout  time.Duration // Per-run deadline (default 5m)
}

// objectUploader is the slice of the MinIO client the mirror needs.
type objectUploader interface {
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// BackupManager mirrors the storage root on a schedule.
type BackupManager struct {
	config   BackupConfig
	client   objectUploader
	root     string
	stopChan chan struct{}

	mu           sync.Mutex
	lastRun      time.Time
	lastErr      error
	lastUploaded int
}

// NewBackupManager creates a backup manager mirroring root to the
// configured bucket through client.
func NewBackupManager(config BackupConfig, client objectUploader, root string) *BackupManager {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	return &BackupManager{
		config:   config,
		client:   client,
		root:     root,
		stopChan: make(chan struct{}),
	}
}

// Start begins the mirror scheduler: one immediate run, then one per
// interval until Stop is called.
func (bm *BackupManager) Start() {
	if !bm.config.Enabled {
		Info("backup mirror disabled", nil)
		return
	}

	Info("backup mirror started", map[string]any{
		"interval": bm.config.Interval.String(),
		"bucket":   bm.config.Bucket,
		"prefix":   bm.config.Prefix,
	})

	go bm.runOnce()

	ticker := time.NewTicker(bm.config.Interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				bm.runOnce()
			case <-bm.stopChan:
				ticker.Stop()
				Info("backup mirror stopped", nil)
				return
			}
		}
	}()
}

// Stop halts the scheduler. An in-flight run finishes on its own.
func (bm *BackupManager) Stop() {
	close(bm.stopChan)
}

// runOnce performs a single mirror pass and records the outcome.
func (bm *BackupManager) runOnce() {
	runID := uuid.NewString()
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), bm.config.Timeout)
	defer cancel()

	uploaded, err := bm.mirror(ctx)

	bm.mu.Lock()
	bm.lastRun = time.Now()
	bm.lastErr = err
	bm.lastUploaded = uploaded
	bm.mu.Unlock()

	if err != nil {
		Error("backup run failed", map[string]any{
			"run_id":   runID,
			"uploaded": uploaded,
		}, err)
		return
	}
	Info("backup run completed", map[string]any{
		"run_id":      runID,
		"uploaded":    uploaded,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// mirror uploads every archive file to the bucket. Individual upload
// failures do not abort the pass; the first error is reported after all
// candidates were attempted.
func (bm *BackupManager) mirror(ctx context.Context) (int, error) {
	files, err := backupCandidates(bm.root)
	if err != nil {
		return 0, err
	}

	var firstErr error
	uploaded := 0
	for _, name := range files {
		key := path.Join(bm.config.Prefix, name)
		_, err := bm.client.FPutObject(ctx, bm.config.Bucket, key, filepath.Join(bm.root, name),
			minio.PutObjectOptions{ContentType: "application/json"})
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("upload %s: %w", name, err)
			}
			continue
		}
		uploaded++
	}
	return uploaded, firstErr
}

// backupCandidates lists the archive files eligible for mirroring:
// regular, non-hidden *.json files. Temp files from in-flight saves are
// dot-prefixed and therefore skipped.
func backupCandidates(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read storage root: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		n := e.Name()
		if strings.HasPrefix(n, ".") || !strings.HasSuffix(n, ".json") {
			continue
		}
		files = append(files, n)
	}
	return files, nil
}

// Health reports the mirror state for the health endpoint.
func (bm *BackupManager) Health() ComponentHealth {
	if !bm.config.Enabled {
		return ComponentHealth{Status: ComponentStatusUp, Message: "backup mirror disabled"}
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.lastRun.IsZero() {
		return ComponentHealth{Status: ComponentStatusUp, Message: "no backup run yet"}
	}
	details := map[string]any{
		"last_run": bm.lastRun.UTC().Format(time.RFC3339),
		"uploaded": bm.lastUploaded,
	}
	if bm.lastErr != nil {
		return ComponentHealth{
			Status:  ComponentStatusDegraded,
			Message: "last backup failed: " + bm.lastErr.Error(),
			Details: details,
		}
	}
	return ComponentHealth{
		Status:  ComponentStatusUp,
		Message: "backup healthy",
		Details: details,
	}
}
