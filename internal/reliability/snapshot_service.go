package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/events"
)

// SnapshotService archives the screener's databases and uploads the archive
// to object storage.
type SnapshotService struct {
	client  *S3Client
	dataDir string
	bus     *events.Bus
	log     zerolog.Logger
}

// NewSnapshotService creates a new snapshot service
func NewSnapshotService(client *S3Client, dataDir string, bus *events.Bus, log zerolog.Logger) *SnapshotService {
	return &SnapshotService{
		client:  client,
		dataDir: dataDir,
		bus:     bus,
		log:     log.With().Str("component", "snapshot").Logger(),
	}
}

// Export archives every .db file in the data dir and uploads the archive
func (s *SnapshotService) Export(ctx context.Context) error {
	start := time.Now()

	matches, err := filepath.Glob(filepath.Join(s.dataDir, "*.db"))
	if err != nil {
		return fmt.Errorf("failed to list databases: %w", err)
	}
	if len(matches) == 0 {
		s.log.Warn().Str("data_dir", s.dataDir).Msg("No databases to snapshot")
		return nil
	}

	archiveName := fmt.Sprintf("screener-snapshot-%s.tar.gz", start.UTC().Format("2006-01-02-150405"))
	archivePath := filepath.Join(s.dataDir, archiveName)
	defer os.Remove(archivePath)

	if err := s.createArchive(archivePath, matches); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("failed to stat archive: %w", err)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	if err := s.client.Upload(ctx, archiveName, f, info.Size()); err != nil {
		return err
	}

	s.log.Info().
		Str("archive", archiveName).
		Int64("size_bytes", info.Size()).
		Dur("duration", time.Since(start)).
		Msg("Snapshot exported")

	if s.bus != nil {
		s.bus.Emit(events.BackupFinished, "reliability", &events.BackupFinishedData{
			Archive:   archiveName,
			SizeBytes: info.Size(),
		})
	}
	return nil
}

// createArchive writes a tar.gz containing the given files
func (s *SnapshotService) createArchive(archivePath string, files []string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	for _, path := range files {
		if err := s.addFile(tw, path); err != nil {
			return fmt.Errorf("failed to archive %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

// addFile appends one file to the tar stream
func (s *SnapshotService) addFile(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    filepath.Base(path),
		Mode:    0644,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

// ExportJob wraps the snapshot service for the scheduler
type ExportJob struct {
	service *SnapshotService
	timeout time.Duration
}

// NewExportJob creates a scheduler job running a snapshot export
func NewExportJob(service *SnapshotService, timeout time.Duration) *ExportJob {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &ExportJob{service: service, timeout: timeout}
}

// Name returns the scheduler job name
func (j *ExportJob) Name() string {
	return "snapshot_export"
}

// Run performs one export
func (j *ExportJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	return j.service.Export(ctx)
}
