package builder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuemby/hoist/pkg/types"
)

type appIDVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

type trustedFacet struct {
	Version appIDVersion `json:"version"`
	IDs     []string     `json:"ids"`
}

type appIDManifest struct {
	TrustedFacets []trustedFacet `json:"trustedFacets"`
}

// AppIDBuilder writes the FIDO trusted facets list served at /app-id.json.
// The content depends on the URL only.
type AppIDBuilder struct {
	writer *Writer
}

// NewAppIDBuilder creates an AppIDBuilder
func NewAppIDBuilder(w *Writer) *AppIDBuilder {
	return &AppIDBuilder{writer: w}
}

func (b *AppIDBuilder) Name() string { return "appid" }

func (b *AppIDBuilder) BuildForInstall(_ context.Context, c *types.Context) error {
	return b.build(c)
}

func (b *AppIDBuilder) BuildForUpdate(_ context.Context, c *types.Context) error {
	return b.build(c)
}

func (b *AppIDBuilder) build(c *types.Context) error {
	manifest := appIDManifest{
		TrustedFacets: []trustedFacet{{
			Version: appIDVersion{Major: 1, Minor: 0},
			IDs:     []string{c.Config.Url},
		}},
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode app id: %w", err)
	}
	data = append(data, '\n')
	return b.writer.WriteArtifact(b.Name(), AppIDPath, data, 0644)
}
