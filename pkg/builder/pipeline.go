package builder

import (
	"context"
	"fmt"
	"io"

	"github.com/cuemby/hoist/pkg/log"
	"github.com/cuemby/hoist/pkg/metrics"
	"github.com/cuemby/hoist/pkg/prompt"
	"github.com/cuemby/hoist/pkg/types"
	"github.com/rs/zerolog"
)

// Pipeline modes
const (
	ModeInstall = "install"
	ModeUpdate  = "update"
)

// Pipeline runs builders in a fixed order. Later builders read fields earlier
// ones set, such as the URL derived from the TLS mode.
type Pipeline struct {
	builders []Builder
	logger   zerolog.Logger
}

// NewPipeline creates a pipeline running builders in the given order
func NewPipeline(builders ...Builder) *Pipeline {
	return &Pipeline{
		builders: builders,
		logger:   log.WithComponent("pipeline"),
	}
}

// NewDefaultPipeline wires the standard order: certificate, URL, reverse
// proxy, env files, app id, compose
func NewDefaultPipeline(w *Writer, p prompt.Prompter, a Acquirer, out io.Writer) *Pipeline {
	return NewPipeline(
		NewCertBuilder(w, p, a, out),
		URLBuilder{},
		NewNginxBuilder(w),
		NewEnvBuilder(w),
		NewAppIDBuilder(w),
		NewComposeBuilder(w),
	)
}

// Builders returns the builders in run order
func (p *Pipeline) Builders() []Builder {
	return p.builders
}

// Install runs every builder's install entry point
func (p *Pipeline) Install(ctx context.Context, c *types.Context) error {
	return p.run(ctx, c, ModeInstall)
}

// Update runs every builder's update entry point
func (p *Pipeline) Update(ctx context.Context, c *types.Context) error {
	return p.run(ctx, c, ModeUpdate)
}

func (p *Pipeline) run(ctx context.Context, c *types.Context, mode string) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.PipelineDuration, mode)

	for _, b := range p.builders {
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		if mode == ModeInstall {
			err = b.BuildForInstall(ctx, c)
		} else {
			err = b.BuildForUpdate(ctx, c)
		}
		if err != nil {
			return fmt.Errorf("%s builder failed: %w", b.Name(), err)
		}
		p.logger.Debug().Str("builder", b.Name()).Str("mode", mode).Msg("Builder finished")
	}

	p.logger.Info().Str("mode", mode).Int("builders", len(p.builders)).Msg("Artifacts generated")
	return nil
}
