package types

import (
	"fmt"
	"time"

	"github.com/cuemby/hoist/pkg/params"
)

// Build-time defaults, overridable with -ldflags "-X github.com/cuemby/hoist/pkg/types.DefaultCoreVersion=..."
var (
	DefaultHostOS      = "lin"
	DefaultCoreVersion = "2025.10.0"
	DefaultWebVersion  = "2025.10.0"
)

// DefaultDataDir is where artifacts and config.yml live unless -datadir is given
const DefaultDataDir = "./hoistdata"

// Host operating systems the printed instructions are tailored to
const (
	HostOSWindows = "win"
	HostOSLinux   = "lin"
	HostOSMac     = "mac"
)

// Context is the aggregate driving one orchestrator run. It is built fresh per
// process from the raw arguments; Config and Install are either populated by
// the install command or loaded from the persisted document.
type Context struct {
	Args       []string
	Parameters params.Parameters

	HostOS      string
	CoreVersion string
	WebVersion  string
	DataDir     string

	Config  Config
	Install Install
}

// Config holds persisted deployment settings. Every field is always written so
// that a save never leaves a stale value behind in the merged document.
type Config struct {
	Url                   string   `yaml:"url"`
	GenerateNginxConfig   bool     `yaml:"generate_nginx_config"`
	HttpPort              int      `yaml:"http_port"`
	HttpsPort             int      `yaml:"https_port"`
	GenerateComposeConfig bool     `yaml:"generate_compose_config"`
	ComposeVersion        string   `yaml:"compose_version"`
	ImageRegistry         string   `yaml:"image_registry"`
	Ssl                   bool     `yaml:"ssl"`
	SslManagedLetsEncrypt bool     `yaml:"ssl_managed_lets_encrypt"`
	LetsEncryptEmail      string   `yaml:"lets_encrypt_email"`
	SslCertificatePath    string   `yaml:"ssl_certificate_path"`
	SslKeyPath            string   `yaml:"ssl_key_path"`
	SslCaPath             string   `yaml:"ssl_ca_path"`
	SslDiffieHellmanPath  string   `yaml:"ssl_diffie_hellman_path"`
	SslVersions           string   `yaml:"ssl_versions"`
	SslCiphersuites       string   `yaml:"ssl_ciphersuites"`
	PushNotifications     bool     `yaml:"push_notifications"`
	DatabaseDockerVolume  bool     `yaml:"database_docker_volume"`
	RealIps               []string `yaml:"real_ips"`
}

// Install is the installation identity plus the secrets generated for it on
// first install. Generated values are reused on every later run.
type Install struct {
	Domain               string `yaml:"domain"`
	InstallationId       string `yaml:"installation_id"`
	InstallationKey      string `yaml:"installation_key"`
	DatabasePassword     string `yaml:"database_password"`
	IdentityCertPassword string `yaml:"identity_cert_password"`
	InternalIdentityKey  string `yaml:"internal_identity_key"`
}

// DefaultConfig returns the settings a fresh install starts from
func DefaultConfig() Config {
	return Config{
		GenerateNginxConfig:   true,
		HttpPort:              80,
		HttpsPort:             443,
		GenerateComposeConfig: true,
		ComposeVersion:        "3",
		ImageRegistry:         "docker.io/cuemby",
		SslVersions:           "TLSv1.2 TLSv1.3",
		PushNotifications:     true,
		DatabaseDockerVolume:  false,
		RealIps:               []string{},
	}
}

// NewContext creates a Context for args with build-time defaults applied
func NewContext(args []string) *Context {
	return &Context{
		Args:        append([]string(nil), args...),
		HostOS:      DefaultHostOS,
		CoreVersion: DefaultCoreVersion,
		WebVersion:  DefaultWebVersion,
		DataDir:     DefaultDataDir,
		Config:      DefaultConfig(),
	}
}

// Scheme returns "https" when TLS is enabled, "http" otherwise
func (c *Context) Scheme() string {
	if c.Config.Ssl {
		return "https"
	}
	return "http"
}

// ComputeURL sets Config.Url to scheme://domain
func (c *Context) ComputeURL() {
	c.Config.Url = fmt.Sprintf("%s://%s", c.Scheme(), c.Install.Domain)
}

// IsWindows reports whether printed instructions should target PowerShell
func (c *Context) IsWindows() bool {
	return c.HostOS == HostOSWindows
}

// ValidHostOS reports whether os is one of the supported host operating systems
func ValidHostOS(os string) bool {
	switch os {
	case HostOSWindows, HostOSLinux, HostOSMac:
		return true
	}
	return false
}

// Artifact is the ledger record of a generated file
type Artifact struct {
	Path      string    `json:"path"`
	Builder   string    `json:"builder"`
	Digest    string    `json:"digest"`
	WrittenAt time.Time `json:"written_at"`
}

// Run records one dispatched command
type Run struct {
	ID          string    `json:"id"`
	Action      string    `json:"action"`
	CoreVersion string    `json:"core_version"`
	WebVersion  string    `json:"web_version"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Successful  bool      `json:"successful"`
	Error       string    `json:"error,omitempty"`
}
