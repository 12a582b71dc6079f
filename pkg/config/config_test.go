package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvebulk/pvebulk/pkg/transports/ssh"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/etc/pve", cfg.Cluster.Root)
	assert.Empty(t, cfg.Cluster.Seed)
	assert.Equal(t, "root", cfg.SSH.User)
	assert.Equal(t, 22, cfg.SSH.Port)
	assert.Equal(t, 2*time.Second, cfg.Wait.Interval)
	assert.Equal(t, 60*time.Second, cfg.Wait.Timeout)
	assert.Equal(t, "none", cfg.Tracing.Exporter)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
cluster:
  seed: 10.0.0.1
ssh:
  auth_method: password
  password: secret
  port: 2222
  command_timeout: 5m
wait:
  interval: 1s
  timeout: 2m
logging:
  level: debug
metrics:
  textfile_path: /tmp/pvebulk.prom
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.1", cfg.Cluster.Seed)
	assert.Equal(t, "/etc/pve", cfg.Cluster.Root, "unset keys keep their defaults")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, 2*time.Minute, cfg.Poll().Timeout)

	base := cfg.SSHBase()
	assert.Equal(t, ssh.AuthMethodPassword, base.AuthMethod)
	assert.Equal(t, "secret", base.Password)
	assert.Equal(t, 2222, base.Port)
	assert.Equal(t, 5*time.Minute, base.CommandTimeout)
	assert.Equal(t, "root", base.User)

	tel := cfg.Telemetry("1.2.3")
	assert.Equal(t, "1.2.3", tel.ServiceVersion)
	assert.Equal(t, "/tmp/pvebulk.prom", tel.Metrics.TextfilePath)
	require.NoError(t, tel.Validate())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "cluster:\n  rooot: /etc/pve\n"},
		{"bad seed", "cluster:\n  seed: pve1\n"},
		{"password missing", "ssh:\n  auth_method: password\n"},
		{"bad port", "ssh:\n  port: 70000\n"},
		{"timeout below interval", "wait:\n  interval: 10s\n  timeout: 5s\n"},
		{"bad level", "logging:\n  level: loud\n"},
		{"not yaml", "cluster: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "does not exist")
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestResolve(t *testing.T) {
	t.Setenv(EnvPath, "/srv/pvebulk.yaml")
	assert.Equal(t, "/tmp/explicit.yaml", Resolve("/tmp/explicit.yaml"))
	assert.Equal(t, "/srv/pvebulk.yaml", Resolve(""))
}
