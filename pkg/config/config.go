package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/pvebulk/pvebulk/pkg/cluster"
	"github.com/pvebulk/pvebulk/pkg/dispatch"
	"github.com/pvebulk/pvebulk/pkg/telemetry"
	"github.com/pvebulk/pvebulk/pkg/transports/ssh"
)

// Config is the pvebulk configuration file.
type Config struct {
	// Cluster locates the cluster store.
	Cluster ClusterConfig `yaml:"cluster"`

	// SSH configures remote dispatch to other nodes.
	SSH SSHConfig `yaml:"ssh"`

	// Wait bounds post-condition polling.
	Wait WaitConfig `yaml:"wait"`

	Logging telemetry.LoggingConfig `yaml:"logging"`
	Tracing telemetry.TracingConfig `yaml:"tracing"`
	Metrics telemetry.MetricsConfig `yaml:"metrics"`
}

// ClusterConfig locates the cluster store.
type ClusterConfig struct {
	// Root is the mount point of the cluster filesystem.
	Root string `yaml:"root" validate:"required"`

	// Seed, when set, is a node whose store is read over SFTP. It lets
	// pvebulk run from a host outside the cluster.
	Seed string `yaml:"seed" validate:"omitempty,ipv4"`
}

// SSHConfig configures connections to other nodes.
type SSHConfig struct {
	User                  string        `yaml:"user" validate:"required"`
	Port                  int           `yaml:"port" validate:"min=1,max=65535"`
	AuthMethod            string        `yaml:"auth_method" validate:"oneof=key password"`
	PrivateKeyPath        string        `yaml:"private_key"`
	PrivateKeyPassphrase  string        `yaml:"private_key_passphrase"`
	Password              string        `yaml:"password" validate:"required_if=AuthMethod password"`
	KnownHostsPath        string        `yaml:"known_hosts"`
	StrictHostKeyChecking bool          `yaml:"strict_host_key_checking"`
	ConnectTimeout        time.Duration `yaml:"connect_timeout" validate:"gt=0"`
	CommandTimeout        time.Duration `yaml:"command_timeout" validate:"gte=0"`
}

// WaitConfig bounds polling for a post-condition such as a restarted
// service becoming active.
type WaitConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
	Timeout  time.Duration `yaml:"timeout" validate:"gtfield=Interval"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	sshDefaults := ssh.DefaultConfig("", "")
	tel := telemetry.DefaultConfig()

	return &Config{
		Cluster: ClusterConfig{
			Root: cluster.DefaultRoot,
		},
		SSH: SSHConfig{
			User:                  sshDefaults.User,
			Port:                  sshDefaults.Port,
			AuthMethod:            string(sshDefaults.AuthMethod),
			KnownHostsPath:        sshDefaults.KnownHostsPath,
			StrictHostKeyChecking: sshDefaults.StrictHostKeyChecking,
			ConnectTimeout:        sshDefaults.ConnectionTimeout,
			CommandTimeout:        sshDefaults.CommandTimeout,
		},
		Wait: WaitConfig{
			Interval: dispatch.DefaultPoll.Interval,
			Timeout:  dispatch.DefaultPoll.Timeout,
		},
		Logging: tel.Logging,
		Tracing: tel.Tracing,
		Metrics: tel.Metrics,
	}
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// SSHBase returns the transport configuration every per-node connection
// is derived from.
func (c *Config) SSHBase() *ssh.Config {
	base := ssh.DefaultConfig("", c.SSH.User)
	base.Port = c.SSH.Port
	base.AuthMethod = ssh.AuthMethod(c.SSH.AuthMethod)
	base.PrivateKeyPath = c.SSH.PrivateKeyPath
	base.PrivateKeyPassphrase = c.SSH.PrivateKeyPassphrase
	base.Password = c.SSH.Password
	base.KnownHostsPath = c.SSH.KnownHostsPath
	base.StrictHostKeyChecking = c.SSH.StrictHostKeyChecking
	base.ConnectionTimeout = c.SSH.ConnectTimeout
	base.CommandTimeout = c.SSH.CommandTimeout
	return base
}

// Poll returns the post-condition polling bounds.
func (c *Config) Poll() dispatch.Poll {
	return dispatch.Poll{Interval: c.Wait.Interval, Timeout: c.Wait.Timeout}
}

// Telemetry returns the telemetry configuration for this invocation.
func (c *Config) Telemetry(version string) *telemetry.Config {
	tel := telemetry.DefaultConfig()
	tel.ServiceVersion = version
	tel.Logging = c.Logging
	tel.Tracing = c.Tracing
	tel.Metrics = c.Metrics
	return tel
}
