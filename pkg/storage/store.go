package storage

import (
	"errors"

	"github.com/cuemby/hoist/pkg/types"
)

// ErrNotFound is returned when a key has no record
var ErrNotFound = errors.New("not found")

// Store defines the interface for the deployment ledger
type Store interface {
	// Artifacts
	PutArtifact(artifact *types.Artifact) error
	GetArtifact(path string) (*types.Artifact, error)
	ListArtifacts() ([]*types.Artifact, error)

	// Runs
	CreateRun(run *types.Run) error
	LastSuccessfulRun() (*types.Run, error)

	// Utility
	Close() error
}
