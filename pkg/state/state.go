// Package state loads and saves the persisted part of a Context.
//
// The document lives at <datadir>/config.yml and is meant to be edited by
// operators. Save merges the new values into the YAML node tree already on
// disk, so keys hoist does not know about, comments and key order survive a
// save.
package state

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/cuemby/hoist/pkg/types"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"
)

// FileName is the config document, relative to the data directory
const FileName = "config.yml"

const header = `hoist deployment configuration.
Edit the values below and run "hoist -update true" to rebuild the artifacts.`

// ErrNotInstalled is returned by Load when no config document exists yet
var ErrNotInstalled = errors.New("no configuration found; run install first")

// Document is the on-disk layout of config.yml
type Document struct {
	Config  types.Config  `yaml:"config"`
	Install types.Install `yaml:"install"`
}

// Exists reports whether a config document is present
func Exists(fs billy.Filesystem) bool {
	_, err := fs.Stat(FileName)
	return err == nil
}

// Load reads config.yml into ctx.Config and ctx.Install. Keys missing from the
// document keep the values ctx already holds.
func Load(fs billy.Filesystem, ctx *types.Context) error {
	data, err := util.ReadFile(fs, FileName)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotInstalled
		}
		return fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	doc := Document{Config: ctx.Config, Install: ctx.Install}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", FileName, err)
	}

	ctx.Config = doc.Config
	ctx.Install = doc.Install
	return nil
}

// Save writes ctx.Config and ctx.Install to config.yml
func Save(fs billy.Filesystem, ctx *types.Context) error {
	var values yaml.Node
	if err := values.Encode(Document{Config: ctx.Config, Install: ctx.Install}); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	root, err := existingRoot(fs)
	if err != nil {
		return err
	}
	if root == nil {
		root = &yaml.Node{
			Kind:        yaml.DocumentNode,
			HeadComment: header,
			Content:     []*yaml.Node{&values},
		}
	} else {
		mergeNode(root.Content[0], &values)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	if err := util.WriteFile(fs, FileName, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", FileName, err)
	}
	return nil
}

// existingRoot returns the document node of the current file, or nil when
// there is no usable mapping document to merge into.
func existingRoot(fs billy.Filesystem) (*yaml.Node, error) {
	data, err := util.ReadFile(fs, FileName)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, nil
	}
	return &root, nil
}

// mergeNode folds src into dst. Mappings merge key by key; anything else is
// replaced by the src value while dst's comments are kept.
func mergeNode(dst, src *yaml.Node) {
	if dst.Kind != yaml.MappingNode || src.Kind != yaml.MappingNode {
		replaced := *src
		replaced.HeadComment = dst.HeadComment
		replaced.LineComment = dst.LineComment
		replaced.FootComment = dst.FootComment
		*dst = replaced
		return
	}

	for i := 0; i+1 < len(src.Content); i += 2 {
		key, value := src.Content[i], src.Content[i+1]
		if j := indexOfKey(dst, key.Value); j >= 0 {
			mergeNode(dst.Content[j+1], value)
			continue
		}
		dst.Content = append(dst.Content, key, value)
	}
}

func indexOfKey(mapping *yaml.Node, key string) int {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return i
		}
	}
	return -1
}
