package definitions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-co-op/gocron/v2"
	"gopkg.in/yaml.v3"

	"github.com/angeloszaimis/uptime-tracker/internal/service"
)

// FileEntry is one service in the seed file.
type FileEntry struct {
	Name             string `yaml:"name"`
	Address          string `yaml:"address"`
	DisplayAddress   string `yaml:"display_address,omitempty"`
	External         bool   `yaml:"external,omitempty"`
	Backend          string `yaml:"backend,omitempty"`
	TrustCertificate bool   `yaml:"trust_certificate,omitempty"`
	CheckType        string `yaml:"check_type"`
}

// File is the root of the seed file.
type File struct {
	Services []FileEntry `yaml:"services"`
}

// Hash is a stable digest of the entry's content.
func (e FileEntry) Hash() string {
	configStr := fmt.Sprintf("%s|%s|%s|%v|%s|%v|%s",
		e.Name,
		e.Address,
		e.DisplayAddress,
		e.External,
		e.Backend,
		e.TrustCertificate,
		e.CheckType,
	)

	hash := sha256.Sum256([]byte(configStr))
	return hex.EncodeToString(hash[:])
}

// Definition converts the entry, stamping it with its hash.
func (e FileEntry) Definition() (Definition, error) {
	kind, err := service.ParseKind(e.CheckType)
	if err != nil {
		return Definition{}, err
	}

	def := Definition{
		Name:             e.Name,
		Address:          e.Address,
		External:         e.External,
		TrustCertificate: e.TrustCertificate,
		CheckType:        kind,
		ConfigHash:       e.Hash(),
	}
	if e.Backend != "" {
		def.Backend = &e.Backend
	}
	if e.DisplayAddress != "" {
		def.DisplayAddress = &e.DisplayAddress
	}
	return def, def.Validate()
}

// LoadFile reads and parses a seed file.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read definitions file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return File{}, fmt.Errorf("parse definitions file: %w", err)
	}
	return file, nil
}

// SyncResult counts what a sync changed.
type SyncResult struct {
	Created   int
	Updated   int
	Deleted   int
	Unchanged int
	Skipped   int
}

func (r SyncResult) Changed() bool {
	return r.Created+r.Updated+r.Deleted > 0
}

// FileSync mirrors a seed file into the store.
type FileSync struct {
	store  *Store
	path   string
	reload func()
	logger *slog.Logger
}

// NewFileSync returns a syncer for path. reload is called after every sync
// that changed the store.
func NewFileSync(store *Store, path string, reload func(), logger *slog.Logger) *FileSync {
	return &FileSync{
		store:  store,
		path:   path,
		reload: reload,
		logger: logger,
	}
}

// Sync creates or updates rows for entries whose hash is new and deletes
// file-managed rows that are no longer listed. Rows without a hash belong to
// the API and are left alone, even when the file names the same service.
func (f *FileSync) Sync(ctx context.Context) (SyncResult, error) {
	var result SyncResult

	file, err := LoadFile(f.path)
	if err != nil {
		return result, err
	}

	existing, err := f.store.ListAll(ctx)
	if err != nil {
		return result, err
	}
	byName := make(map[string]Definition, len(existing))
	for _, def := range existing {
		byName[def.Name] = def
	}

	listed := make(map[string]bool, len(file.Services))
	for _, entry := range file.Services {
		def, err := entry.Definition()
		if err != nil {
			f.logger.Warn("skipping invalid definitions entry",
				slog.String("service", entry.Name),
				slog.String("error", err.Error()),
			)
			result.Skipped++
			continue
		}
		listed[def.Name] = true

		current, exists := byName[def.Name]
		switch {
		case exists && current.ConfigHash == "":
			f.logger.Debug("service managed through the API, not overwriting", slog.String("service", def.Name))
			result.Skipped++
			continue
		case exists && current.ConfigHash == def.ConfigHash:
			result.Unchanged++
			continue
		}

		if err := f.store.Upsert(ctx, def); err != nil {
			return result, err
		}
		if exists {
			f.logger.Info("updated service from file", slog.String("service", def.Name))
			result.Updated++
		} else {
			f.logger.Info("created service from file", slog.String("service", def.Name))
			result.Created++
		}
	}

	for _, def := range existing {
		if def.ConfigHash == "" || listed[def.Name] {
			continue
		}
		if err := f.store.Delete(ctx, def.Name); err != nil {
			return result, err
		}
		f.logger.Info("removed service no longer in file", slog.String("service", def.Name))
		result.Deleted++
	}

	if result.Changed() && f.reload != nil {
		f.reload()
	}
	return result, nil
}

// Schedule runs Sync on s every interval, starting immediately. Overlapping
// runs are skipped.
func (f *FileSync) Schedule(ctx context.Context, s gocron.Scheduler, interval time.Duration) (gocron.Job, error) {
	return s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			result, err := f.Sync(ctx)
			if err != nil {
				f.logger.Error("definitions file sync failed",
					slog.String("file", f.path),
					slog.String("error", err.Error()),
				)
				return
			}
			f.logger.Debug("definitions file synced",
				slog.String("file", f.path),
				slog.Int("created", result.Created),
				slog.Int("updated", result.Updated),
				slog.Int("deleted", result.Deleted),
			)
		}),
		gocron.WithName("definitions-file-sync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
}
