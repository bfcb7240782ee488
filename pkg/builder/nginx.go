package builder

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/cuemby/hoist/pkg/log"
	"github.com/cuemby/hoist/pkg/types"
	"github.com/rs/zerolog"
)

// Static asset cache lifetimes, in seconds
const (
	staticAssetMaxAge = 14 * 24 * 60 * 60
	imageMaxAge       = 7 * 24 * 60 * 60
)

// cacheRule is a location served by the web container with a public cache header
type cacheRule struct {
	Path   string
	MaxAge int
}

var cacheRules = []cacheRule{
	{Path: "/app/", MaxAge: staticAssetMaxAge},
	{Path: "/locales/", MaxAge: staticAssetMaxAge},
	{Path: "/fonts/", MaxAge: staticAssetMaxAge},
	{Path: "/connectors/", MaxAge: staticAssetMaxAge},
	{Path: "/scripts/", MaxAge: staticAssetMaxAge},
	{Path: "/images/", MaxAge: imageMaxAge},
}

var nginxTemplate = template.Must(template.New("default.conf").Parse(`# Generated by hoist. Set generate_nginx_config: false in config.yml
# to maintain this file yourself.
server {
  listen 8080 default_server;
  listen [::]:8080 default_server;
  server_name {{.Domain}};
{{- if .Ssl}}
  return 301 {{.Url}}$request_uri;
}

server {
  listen 8443 ssl http2;
  listen [::]:8443 ssl http2;
  server_name {{.Domain}};

  ssl_certificate {{.CertificatePath}};
  ssl_certificate_key {{.KeyPath}};
  ssl_session_timeout 30m;
  ssl_session_cache shared:SSL:20m;
  ssl_session_tickets off;
{{- if .DiffieHellmanPath}}
  ssl_dhparam {{.DiffieHellmanPath}};
{{- end}}
  ssl_protocols {{.Protocols}};
{{- if .Ciphersuites}}
  ssl_ciphers "{{.Ciphersuites}}";
{{- end}}
  ssl_prefer_server_ciphers on;
{{- if .CaPath}}
  ssl_stapling on;
  ssl_stapling_verify on;
  ssl_trusted_certificate {{.CaPath}};
  resolver 1.1.1.1 1.0.0.1 9.9.9.9 149.112.112.112 valid=300s;
{{- end}}
  add_header Strict-Transport-Security max-age=15768000;
{{- end}}
{{- range .RealIps}}
  set_real_ip_from {{.}};
{{- end}}
{{- if .RealIps}}
  real_ip_header X-Forwarded-For;
  real_ip_recursive on;
{{- end}}

  location / {
    proxy_pass http://web:5000/;
  }
{{range .CacheRules}}
  location {{.Path}} {
    proxy_pass http://web:5000{{.Path}};
    add_header Cache-Control "public, max-age={{.MaxAge}}";
  }
{{end}}
  location = /app-id.json {
    proxy_pass http://web:5000/app-id.json;
    proxy_hide_header Content-Type;
    add_header Content-Type application/fido.trusted-apps+json;
  }

  location /attachments/ {
    proxy_pass http://attachments:5000/;
  }

  location /api/ {
    proxy_pass http://api:5000/;
  }

  location /identity/ {
    proxy_pass http://identity:5000/;
  }

  location /icons/ {
    proxy_pass http://icons:5000/;
  }
{{- if .PushNotifications}}

  location /notifications/ {
    proxy_pass http://notifications:5000/;
  }

  location /notifications/hub {
    proxy_pass http://notifications:5000/hub;
    proxy_set_header Upgrade $http_upgrade;
    proxy_set_header Connection $http_connection;
  }
{{- end}}

  location /events/ {
    proxy_pass http://events:5000/;
  }

  location /admin {
    proxy_pass http://admin:5000;
  }
}
`))

type nginxModel struct {
	Domain            string
	Url               string
	Ssl               bool
	CertificatePath   string
	KeyPath           string
	CaPath            string
	DiffieHellmanPath string
	Protocols         string
	Ciphersuites      string
	RealIps           []string
	PushNotifications bool
	CacheRules        []cacheRule
}

// NginxBuilder renders the reverse proxy configuration
type NginxBuilder struct {
	writer *Writer
	logger zerolog.Logger
}

// NewNginxBuilder creates a NginxBuilder
func NewNginxBuilder(w *Writer) *NginxBuilder {
	return &NginxBuilder{writer: w, logger: log.WithComponent("nginx")}
}

func (b *NginxBuilder) Name() string { return "nginx" }

func (b *NginxBuilder) BuildForInstall(_ context.Context, c *types.Context) error {
	return b.build(c)
}

// BuildForUpdate leaves the file alone when the operator turned generation off
func (b *NginxBuilder) BuildForUpdate(_ context.Context, c *types.Context) error {
	if !c.Config.GenerateNginxConfig {
		b.logger.Info().Msg("Skipping reverse proxy config, generate_nginx_config is false")
		return nil
	}
	return b.build(c)
}

func (b *NginxBuilder) build(c *types.Context) error {
	data, err := RenderNginx(c)
	if err != nil {
		return err
	}
	return b.writer.WriteArtifact(b.Name(), NginxConfigPath, data, 0644)
}

// RenderNginx renders default.conf for c
func RenderNginx(c *types.Context) ([]byte, error) {
	protocols := c.Config.SslVersions
	if strings.TrimSpace(protocols) == "" {
		protocols = types.DefaultConfig().SslVersions
	}

	model := nginxModel{
		Domain:            c.Install.Domain,
		Url:               c.Config.Url,
		Ssl:               c.Config.Ssl,
		CertificatePath:   c.Config.SslCertificatePath,
		KeyPath:           c.Config.SslKeyPath,
		CaPath:            c.Config.SslCaPath,
		DiffieHellmanPath: c.Config.SslDiffieHellmanPath,
		Protocols:         protocols,
		Ciphersuites:      c.Config.SslCiphersuites,
		RealIps:           c.Config.RealIps,
		PushNotifications: c.Config.PushNotifications,
		CacheRules:        cacheRules,
	}

	var buf bytes.Buffer
	if err := nginxTemplate.Execute(&buf, model); err != nil {
		return nil, fmt.Errorf("failed to render nginx config: %w", err)
	}
	return buf.Bytes(), nil
}
