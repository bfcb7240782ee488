package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewContext(t *testing.T) {
	args := []string{"-install", "true"}
	ctx := NewContext(args)

	assert.Equal(t, DefaultHostOS, ctx.HostOS)
	assert.Equal(t, DefaultCoreVersion, ctx.CoreVersion)
	assert.Equal(t, DefaultWebVersion, ctx.WebVersion)
	assert.Equal(t, DefaultDataDir, ctx.DataDir)
	assert.Equal(t, DefaultConfig(), ctx.Config)

	// Args are captured, not aliased
	args[0] = "-update"
	assert.Equal(t, "-install", ctx.Args[0])
}

func TestComputeURL(t *testing.T) {
	tests := []struct {
		name     string
		ssl      bool
		domain   string
		expected string
	}{
		{name: "tls enabled", ssl: true, domain: "example.com", expected: "https://example.com"},
		{name: "tls disabled", ssl: false, domain: "vault.local", expected: "http://vault.local"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := NewContext(nil)
			ctx.Config.Ssl = tt.ssl
			ctx.Install.Domain = tt.domain

			ctx.ComputeURL()

			assert.Equal(t, tt.expected, ctx.Config.Url)
		})
	}
}

func TestValidHostOS(t *testing.T) {
	for _, os := range []string{"win", "lin", "mac"} {
		assert.True(t, ValidHostOS(os), os)
	}
	for _, os := range []string{"", "linux", "WIN"} {
		assert.False(t, ValidHostOS(os), os)
	}
}
