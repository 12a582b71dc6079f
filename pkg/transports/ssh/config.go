package ssh

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// AuthMethod selects how connections authenticate.
type AuthMethod string

const (
	AuthMethodPassword AuthMethod = "password"
	AuthMethodKey      AuthMethod = "key"
)

// ClusterKnownHosts is the known_hosts file shared by all cluster nodes.
const ClusterKnownHosts = "/etc/pve/priv/known_hosts"

const clientVersion = "SSH-2.0-pvebulk"

// Config describes how to reach one node. A pool keeps a base Config and
// derives per-node copies with ForHost.
type Config struct {
	Host       string     `validate:"required"`
	Port       int        `validate:"min=1,max=65535"`
	User       string     `validate:"required"`
	AuthMethod AuthMethod `validate:"oneof=password key"`

	Password             string `validate:"required_if=AuthMethod password"`
	PrivateKeyPath       string
	PrivateKeyPassphrase string

	// KnownHostsPath is consulted when StrictHostKeyChecking is set, together
	// with the user's own known_hosts if present.
	KnownHostsPath        string
	StrictHostKeyChecking bool

	ConnectionTimeout time.Duration `validate:"gt=0"`
	// CommandTimeout bounds a single command; zero leaves only the caller's
	// context.
	CommandTimeout time.Duration `validate:"gte=0"`

	// KeepAliveInterval of zero disables keep-alives.
	KeepAliveInterval   time.Duration `validate:"gte=0"`
	MaxKeepAliveRetries int           `validate:"gte=0"`
}

var validate = validator.New()

// DefaultConfig returns key authentication as root against the cluster's
// shared known_hosts.
func DefaultConfig(host string, user string) *Config {
	if user == "" {
		user = "root"
	}
	return &Config{
		Host:                  host,
		Port:                  22,
		User:                  user,
		AuthMethod:            AuthMethodKey,
		KnownHostsPath:        ClusterKnownHosts,
		StrictHostKeyChecking: true,
		ConnectionTimeout:     10 * time.Second,
		CommandTimeout:        30 * time.Minute,
		MaxKeepAliveRetries:   3,
	}
}

// ForHost returns a copy of the config pointed at another host.
func (c *Config) ForHost(host string) *Config {
	cp := *c
	cp.Host = host
	return &cp
}

// Validate checks the config. With key authentication and no key path set,
// it picks the first default identity of the current user.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fieldError(verrs[0])
		}
		return err
	}

	if c.AuthMethod != AuthMethodKey {
		return nil
	}
	if c.PrivateKeyPath == "" {
		c.PrivateKeyPath = defaultIdentity()
		if c.PrivateKeyPath == "" {
			return fmt.Errorf("private key path is required for key authentication and no default key found")
		}
	}
	if _, err := os.Stat(c.PrivateKeyPath); os.IsNotExist(err) {
		return fmt.Errorf("private key file not found: %s", c.PrivateKeyPath)
	}
	return nil
}

func fieldError(fe validator.FieldError) error {
	switch fe.StructField() {
	case "Host":
		return errors.New("host is required")
	case "User":
		return errors.New("user is required")
	case "Port":
		return fmt.Errorf("invalid port: %v", fe.Value())
	case "AuthMethod":
		return fmt.Errorf("unsupported auth method: %v", fe.Value())
	case "Password":
		return errors.New("password is required for password authentication")
	case "ConnectionTimeout":
		return errors.New("connection timeout must be positive")
	case "CommandTimeout":
		return errors.New("command timeout must not be negative")
	}
	return fmt.Errorf("invalid %s: failed %q", fe.Field(), fe.Tag())
}

func defaultIdentity() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		path := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// BuildSSHClientConfig creates an ssh.ClientConfig from the Config.
func (c *Config) BuildSSHClientConfig() (*ssh.ClientConfig, error) {
	auth, err := c.authMethods()
	if err != nil {
		return nil, err
	}
	hostKeys, err := c.hostKeyCallback()
	if err != nil {
		return nil, err
	}
	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         c.ConnectionTimeout,
		ClientVersion:   clientVersion,
	}, nil
}

func (c *Config) authMethods() ([]ssh.AuthMethod, error) {
	switch c.AuthMethod {
	case AuthMethodPassword:
		// Nodes with PAM often offer only keyboard-interactive.
		answer := func(_, _ string, questions []string, _ []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range answers {
				answers[i] = c.Password
			}
			return answers, nil
		}
		return []ssh.AuthMethod{ssh.Password(c.Password), ssh.KeyboardInteractive(answer)}, nil

	case AuthMethodKey:
		signer, err := c.signer()
		if err != nil {
			return nil, err
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	return nil, fmt.Errorf("unsupported auth method: %s", c.AuthMethod)
}

func (c *Config) signer() (ssh.Signer, error) {
	pem, err := os.ReadFile(c.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	var signer ssh.Signer
	if c.PrivateKeyPassphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(c.PrivateKeyPassphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(pem)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key %s: %w", c.PrivateKeyPath, err)
	}
	return signer, nil
}

func (c *Config) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if !c.StrictHostKeyChecking || c.KnownHostsPath == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	files := []string{c.KnownHostsPath}
	if home, err := os.UserHomeDir(); err == nil {
		own := filepath.Join(home, ".ssh", "known_hosts")
		if _, err := os.Stat(own); err == nil && own != c.KnownHostsPath {
			files = append(files, own)
		}
	}

	callback, err := knownhosts.New(files...)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}
	return callback, nil
}

// Address returns host:port, bracketing IPv6 literals.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
