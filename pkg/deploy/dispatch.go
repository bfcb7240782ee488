package deploy

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/cuemby/hoist/pkg/params"
	"github.com/cuemby/hoist/pkg/types"
)

// Action is the top-level command selected by the parameters
type Action string

const (
	ActionNone     Action = "none"
	ActionInstall  Action = "install"
	ActionRebuild  Action = "rebuild"
	ActionUpdateDB Action = "updatedb"
	ActionPrintEnv Action = "printenv"
)

// Route selects the action. install wins over update, update over printenv;
// update with db only migrates the database.
func Route(p params.Parameters) Action {
	switch {
	case p.Has("install"):
		return ActionInstall
	case p.Has("update"):
		if p.Has("db") {
			return ActionUpdateDB
		}
		return ActionRebuild
	case p.Has("printenv"):
		return ActionPrintEnv
	default:
		return ActionNone
	}
}

// NewContext parses args and applies the os, corev, webv and datadir
// overrides
func NewContext(args []string) (*types.Context, error) {
	c := types.NewContext(args)

	p, err := params.Parse(args)
	if err != nil {
		return nil, &InputError{Err: err}
	}
	c.Parameters = p

	if err := ApplyOverrides(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyOverrides copies the platform and version overrides into c
func ApplyOverrides(c *types.Context) error {
	if hostOS, ok := c.Parameters.Lookup("os"); ok {
		hostOS = strings.ToLower(hostOS)
		if !types.ValidHostOS(hostOS) {
			return &InputError{
				Param:  "os",
				Value:  hostOS,
				Reason: fmt.Sprintf("must be one of %s, %s, %s", types.HostOSWindows, types.HostOSLinux, types.HostOSMac),
			}
		}
		c.HostOS = hostOS
	}

	for _, o := range []struct {
		name   string
		target *string
	}{
		{"corev", &c.CoreVersion},
		{"webv", &c.WebVersion},
	} {
		v, ok := c.Parameters.Lookup(o.name)
		if !ok {
			continue
		}
		if _, err := semver.NewVersion(v); err != nil {
			return &InputError{Param: o.name, Value: v, Reason: "not a semantic version", Err: err}
		}
		*o.target = v
	}

	if dir, ok := c.Parameters.Lookup("datadir"); ok {
		if strings.TrimSpace(dir) == "" {
			return &InputError{Param: "datadir", Value: dir, Reason: "must not be empty"}
		}
		c.DataDir = dir
	}
	return nil
}
