package builder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/cuemby/hoist/pkg/log"
	"github.com/cuemby/hoist/pkg/metrics"
	"github.com/cuemby/hoist/pkg/storage"
	"github.com/cuemby/hoist/pkg/types"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/rs/zerolog"
)

// Artifact locations, relative to the data directory
const (
	NginxConfigPath       = "nginx/default.conf"
	GlobalEnvPath         = "env/global.env"
	GlobalOverrideEnvPath = "env/global.override.env"
	MssqlEnvPath          = "env/mssql.env"
	MssqlOverrideEnvPath  = "env/mssql.override.env"
	AppIDPath             = "web/app-id.json"
	ComposePath           = "docker/docker-compose.yml"
	ComposeOverridePath   = "docker/docker-compose.override.yml"
	IdentityCertPath      = "identity/identity.crt"
	IdentityKeyPath       = "identity/identity.key"
)

// BackupSuffix is appended to a hand-edited managed file before it is regenerated
const BackupSuffix = ".bak"

// Builder regenerates one category of deployment artifacts from a Context.
// Running a builder twice with an unchanged Context produces identical files.
type Builder interface {
	Name() string
	// BuildForInstall runs on first install and may pick defaults
	BuildForInstall(ctx context.Context, c *types.Context) error
	// BuildForUpdate runs on rebuild and keeps operator edits it does not own
	BuildForUpdate(ctx context.Context, c *types.Context) error
}

// Writer writes artifacts into the data directory and keeps the ledger of
// what was written
type Writer struct {
	fs     billy.Filesystem
	ledger storage.Store
	logger zerolog.Logger
}

// NewWriter creates a Writer. ledger may be nil, in which case hand edits are
// not detected.
func NewWriter(fs billy.Filesystem, ledger storage.Store) *Writer {
	return &Writer{
		fs:     fs,
		ledger: ledger,
		logger: log.WithComponent("builder"),
	}
}

// Filesystem returns the data directory filesystem
func (w *Writer) Filesystem() billy.Filesystem {
	return w.fs
}

// ReadFile returns the content of path and whether it exists
func (w *Writer) ReadFile(name string) ([]byte, bool, error) {
	data, err := util.ReadFile(w.fs, name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, true, nil
}

// WriteArtifact writes a file hoist owns. When the file on disk no longer
// matches the digest recorded for it, it is copied to <name>.bak first.
// Unchanged content is not rewritten.
func (w *Writer) WriteArtifact(builder, name string, data []byte, perm os.FileMode) error {
	current, exists, err := w.ReadFile(name)
	if err != nil {
		return err
	}
	digest := Digest(data)

	var record *types.Artifact
	if w.ledger != nil {
		record, err = w.ledger.GetArtifact(name)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to read ledger: %w", err)
		}
	}

	if exists && record != nil {
		onDisk := Digest(current)
		if onDisk != record.Digest && onDisk != digest {
			if err := w.backup(name, current); err != nil {
				return err
			}
		}
	}

	changed := !exists || !bytes.Equal(current, data)
	if changed {
		if err := w.write(name, data, perm); err != nil {
			return err
		}
	}
	metrics.ArtifactsWritten.WithLabelValues(builder, strconv.FormatBool(changed)).Inc()

	if w.ledger != nil && (record == nil || record.Digest != digest) {
		err := w.ledger.PutArtifact(&types.Artifact{
			Path:      name,
			Builder:   builder,
			Digest:    digest,
			WrittenAt: time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("failed to record artifact %s: %w", name, err)
		}
	}

	w.logger.Debug().
		Str("artifact", name).
		Str("builder", builder).
		Bool("changed", changed).
		Msg("Artifact written")
	return nil
}

// Drifted returns the ledger paths whose file on disk no longer matches the
// recorded digest, in path order. A deleted file counts as drifted.
func (w *Writer) Drifted() ([]string, error) {
	if w.ledger == nil {
		return nil, nil
	}
	artifacts, err := w.ledger.ListArtifacts()
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	var drifted []string
	for _, artifact := range artifacts {
		data, exists, err := w.ReadFile(artifact.Path)
		if err != nil {
			return nil, err
		}
		if !exists || Digest(data) != artifact.Digest {
			drifted = append(drifted, artifact.Path)
		}
	}
	return drifted, nil
}

// WriteUserFile writes a file operators are expected to edit. It is not
// tracked in the ledger.
func (w *Writer) WriteUserFile(name string, data []byte, perm os.FileMode) error {
	current, exists, err := w.ReadFile(name)
	if err != nil {
		return err
	}
	if exists && bytes.Equal(current, data) {
		return nil
	}
	return w.write(name, data, perm)
}

func (w *Writer) backup(name string, current []byte) error {
	backupName := name + BackupSuffix
	if err := w.write(backupName, current, 0600); err != nil {
		return fmt.Errorf("failed to back up %s: %w", name, err)
	}
	metrics.ArtifactBackups.Inc()
	w.logger.Warn().
		Str("artifact", name).
		Str("backup", backupName).
		Msg("Generated file was edited by hand; saved a backup before regenerating")
	return nil
}

func (w *Writer) write(name string, data []byte, perm os.FileMode) error {
	if err := w.fs.MkdirAll(path.Dir(name), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}
	if err := util.WriteFile(w.fs, name, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Digest returns the hex SHA-256 of data
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
