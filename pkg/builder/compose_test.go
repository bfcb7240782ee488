package builder

import (
	"context"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type parsedCompose struct {
	Version  string                    `yaml:"version"`
	Services map[string]composeService `yaml:"services"`
	Volumes  map[string]interface{}    `yaml:"volumes"`
}

func serviceOrder(t *testing.T, data []byte) []string {
	t.Helper()
	var root yaml.Node
	require.NoError(t, yaml.Unmarshal(data, &root))
	mapping := root.Content[0]
	for i := 0; i < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == "services" {
			var names []string
			services := mapping.Content[i+1]
			for j := 0; j < len(services.Content); j += 2 {
				names = append(names, services.Content[j].Value)
			}
			return names
		}
	}
	t.Fatal("services key not found")
	return nil
}

func TestRenderCompose(t *testing.T) {
	c := newTestContext()
	c.CoreVersion = "2025.10.1"
	c.WebVersion = "2025.10.2"
	c.Config.Ssl = true

	data, err := RenderCompose(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Generated by hoist.")

	assert.Equal(t, []string{
		ServiceMssql, ServiceWeb, ServiceAttachments, ServiceAPI, ServiceIdentity,
		ServiceAdmin, ServiceIcons, ServiceNotifications, ServiceEvents, ServiceNginx,
	}, serviceOrder(t, data))

	var parsed parsedCompose
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	assert.Equal(t, "3", parsed.Version)
	assert.Equal(t, "docker.io/cuemby/api:2025.10.1", parsed.Services[ServiceAPI].Image)
	assert.Equal(t, "docker.io/cuemby/web:2025.10.2", parsed.Services[ServiceWeb].Image)
	assert.Equal(t, []string{ServiceMssql}, parsed.Services[ServiceAdmin].DependsOn)
	assert.Equal(t, []string{"80:8080", "443:8443"}, parsed.Services[ServiceNginx].Ports)
	assert.Contains(t, parsed.Services[ServiceMssql].Volumes, "../mssql/data:/var/opt/mssql/data")
	assert.Nil(t, parsed.Volumes)
}

func TestRenderComposeOptionalServices(t *testing.T) {
	c := newTestContext()
	c.Config.PushNotifications = false
	c.Config.DatabaseDockerVolume = true
	c.Config.HttpPort = 8081
	c.Config.ImageRegistry = "registry.example.com/vault"

	data, err := RenderCompose(c)
	require.NoError(t, err)
	assert.NotContains(t, serviceOrder(t, data), ServiceNotifications)

	var parsed parsedCompose
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	assert.Equal(t, []string{"8081:8080"}, parsed.Services[ServiceNginx].Ports)
	assert.Contains(t, parsed.Services[ServiceMssql].Volumes, "mssql_data:/var/opt/mssql/data")
	assert.Contains(t, parsed.Volumes, "mssql_data")
	assert.Equal(t, "registry.example.com/vault/nginx:"+c.CoreVersion, parsed.Services[ServiceNginx].Image)
}

func TestComposeBuilderLeavesOverrideAlone(t *testing.T) {
	fs := memfs.New()
	b := NewComposeBuilder(NewWriter(fs, newTestLedger(t)))
	require.NoError(t, util.WriteFile(fs, ComposeOverridePath, []byte("services: {}\n"), 0644))

	c := newTestContext()
	require.NoError(t, b.BuildForInstall(context.Background(), c))
	first := readFile(t, fs, ComposePath)
	require.NoError(t, b.BuildForUpdate(context.Background(), c))

	assert.Equal(t, first, readFile(t, fs, ComposePath))
	assert.Equal(t, "services: {}\n", readFile(t, fs, ComposeOverridePath))
}

func TestComposeBuilderUpdateSkippedWhenDisabled(t *testing.T) {
	fs := memfs.New()
	b := NewComposeBuilder(NewWriter(fs, nil))
	c := newTestContext()
	c.Config.GenerateComposeConfig = false

	require.NoError(t, b.BuildForUpdate(context.Background(), c))
	assert.False(t, exists(fs, ComposePath))
}
