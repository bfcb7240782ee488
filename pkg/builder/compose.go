package builder

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/cuemby/hoist/pkg/log"
	"github.com/cuemby/hoist/pkg/types"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const composeHeader = `Generated by hoist. Changes are overwritten on update.
Put your customizations in docker-compose.override.yml next to this file.`

// Service names, in start order
const (
	ServiceMssql         = "mssql"
	ServiceWeb           = "web"
	ServiceAttachments   = "attachments"
	ServiceAPI           = "api"
	ServiceIdentity      = "identity"
	ServiceAdmin         = "admin"
	ServiceIcons         = "icons"
	ServiceNotifications = "notifications"
	ServiceEvents        = "events"
	ServiceNginx         = "nginx"
)

const mssqlVolume = "mssql_data"

type composeService struct {
	Image         string   `yaml:"image"`
	ContainerName string   `yaml:"container_name"`
	Restart       string   `yaml:"restart"`
	DependsOn     []string `yaml:"depends_on,omitempty"`
	Ports         []string `yaml:"ports,omitempty"`
	Volumes       []string `yaml:"volumes,omitempty"`
	EnvFile       []string `yaml:"env_file,omitempty"`
}

type namedService struct {
	name    string
	service composeService
}

// ComposeBuilder writes the container orchestration manifest. The override
// file next to it is never touched.
type ComposeBuilder struct {
	writer *Writer
	logger zerolog.Logger
}

// NewComposeBuilder creates a ComposeBuilder
func NewComposeBuilder(w *Writer) *ComposeBuilder {
	return &ComposeBuilder{writer: w, logger: log.WithComponent("compose")}
}

func (b *ComposeBuilder) Name() string { return "compose" }

func (b *ComposeBuilder) BuildForInstall(_ context.Context, c *types.Context) error {
	return b.build(c)
}

// BuildForUpdate leaves the file alone when the operator turned generation off
func (b *ComposeBuilder) BuildForUpdate(_ context.Context, c *types.Context) error {
	if !c.Config.GenerateComposeConfig {
		b.logger.Info().Msg("Skipping compose file, generate_compose_config is false")
		return nil
	}
	return b.build(c)
}

func (b *ComposeBuilder) build(c *types.Context) error {
	data, err := RenderCompose(c)
	if err != nil {
		return err
	}
	return b.writer.WriteArtifact(b.Name(), ComposePath, data, 0644)
}

// RenderCompose renders docker-compose.yml for c. Services keep their start
// order in the output.
func RenderCompose(c *types.Context) ([]byte, error) {
	services := composeServices(c)

	servicesNode := &yaml.Node{Kind: yaml.MappingNode}
	for _, s := range services {
		var value yaml.Node
		if err := value.Encode(s.service); err != nil {
			return nil, fmt.Errorf("failed to encode service %s: %w", s.name, err)
		}
		servicesNode.Content = append(servicesNode.Content, scalar(s.name), &value)
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	version := c.Config.ComposeVersion
	if version == "" {
		version = types.DefaultConfig().ComposeVersion
	}
	versionNode := scalar(version)
	versionNode.Style = yaml.SingleQuotedStyle
	root.Content = append(root.Content, scalar("version"), versionNode)
	root.Content = append(root.Content, scalar("services"), servicesNode)

	if c.Config.DatabaseDockerVolume {
		volumes := &yaml.Node{Kind: yaml.MappingNode}
		volumes.Content = append(volumes.Content, scalar(mssqlVolume), &yaml.Node{Kind: yaml.MappingNode})
		root.Content = append(root.Content, scalar("volumes"), volumes)
	}

	doc := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: composeHeader,
		Content:     []*yaml.Node{root},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode compose file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode compose file: %w", err)
	}
	return buf.Bytes(), nil
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func composeServices(c *types.Context) []namedService {
	registry := c.Config.ImageRegistry
	if registry == "" {
		registry = types.DefaultConfig().ImageRegistry
	}
	image := func(name, version string) string {
		return fmt.Sprintf("%s/%s:%s", registry, name, version)
	}
	globalEnv := []string{"../env/global.env", "../env/global.override.env"}
	coreVolumes := func(name string, extra ...string) []string {
		volumes := []string{"../core:/etc/hoist/core", "../logs/" + name + ":/etc/hoist/logs"}
		return append(volumes, extra...)
	}
	app := func(name string, dependsOn []string, volumes []string) namedService {
		return namedService{name: name, service: composeService{
			Image:         image(name, c.CoreVersion),
			ContainerName: "hoist-" + name,
			Restart:       "always",
			DependsOn:     dependsOn,
			Volumes:       volumes,
			EnvFile:       globalEnv,
		}}
	}

	dataVolume := "../mssql/data:/var/opt/mssql/data"
	if c.Config.DatabaseDockerVolume {
		dataVolume = mssqlVolume + ":/var/opt/mssql/data"
	}

	services := []namedService{
		{name: ServiceMssql, service: composeService{
			Image:         image(ServiceMssql, c.CoreVersion),
			ContainerName: "hoist-" + ServiceMssql,
			Restart:       "always",
			Volumes: []string{
				dataVolume,
				"../logs/mssql:/var/opt/mssql/log",
				"../mssql/backups:/etc/hoist/mssql/backups",
			},
			EnvFile: []string{"../env/mssql.env", "../env/mssql.override.env"},
		}},
		{name: ServiceWeb, service: composeService{
			Image:         image(ServiceWeb, c.WebVersion),
			ContainerName: "hoist-" + ServiceWeb,
			Restart:       "always",
			Volumes:       []string{"../web:/etc/hoist/web"},
			EnvFile:       globalEnv,
		}},
		app(ServiceAttachments, nil, []string{"../core/attachments:/etc/hoist/core/attachments"}),
		app(ServiceAPI, []string{ServiceMssql}, coreVolumes(ServiceAPI)),
		app(ServiceIdentity, []string{ServiceMssql}, coreVolumes(ServiceIdentity, "../identity:/etc/hoist/identity")),
		app(ServiceAdmin, []string{ServiceMssql}, coreVolumes(ServiceAdmin)),
		app(ServiceIcons, nil, []string{"../logs/icons:/etc/hoist/logs"}),
	}
	if c.Config.PushNotifications {
		services = append(services, app(ServiceNotifications, nil, []string{"../logs/notifications:/etc/hoist/logs"}))
	}
	services = append(services, app(ServiceEvents, []string{ServiceMssql}, coreVolumes(ServiceEvents)))

	ports := []string{strconv.Itoa(c.Config.HttpPort) + ":8080"}
	if c.Config.Ssl {
		ports = append(ports, strconv.Itoa(c.Config.HttpsPort)+":8443")
	}
	nginxDeps := []string{ServiceWeb, ServiceAdmin, ServiceAPI, ServiceIdentity}
	services = append(services, namedService{name: ServiceNginx, service: composeService{
		Image:         image(ServiceNginx, c.CoreVersion),
		ContainerName: "hoist-" + ServiceNginx,
		Restart:       "always",
		DependsOn:     nginxDeps,
		Ports:         ports,
		Volumes: []string{
			"../nginx:/etc/nginx/conf.d",
			"../ssl:/etc/ssl",
			"../letsencrypt:/etc/letsencrypt",
			"../logs/nginx:/var/log/nginx",
		},
	}})

	return services
}
