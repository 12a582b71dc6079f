package ssh

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// Pool keeps one connection per host, opened on first use and reused for
// the rest of the run.
type Pool struct {
	base *Config

	mu    sync.Mutex
	conns map[string]*SSHClient
}

// NewPool creates a pool whose connections use base with Host replaced.
func NewPool(base *Config) *Pool {
	return &Pool{
		base:  base,
		conns: make(map[string]*SSHClient),
	}
}

// Get returns a connected client for host.
func (p *Pool) Get(ctx context.Context, host string) (*SSHClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	client, ok := p.conns[host]
	if !ok {
		var err error
		client, err = NewSSHClient(p.base.ForHost(host))
		if err != nil {
			return nil, err
		}
		p.conns[host] = client
	}

	if client.IsConnected() {
		if err := client.HealthCheck(ctx); err == nil {
			return client, nil
		}
		log.Debug().Str("host", host).Msg("pooled SSH connection is stale, reconnecting")
		_ = client.Disconnect()
	}

	if !client.IsConnected() {
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
	}
	return client, nil
}

// Run executes cmd on host through the pooled connection.
func (p *Pool) Run(ctx context.Context, host, cmd string) (*ExecResult, error) {
	client, err := p.Get(ctx, host)
	if err != nil {
		return &ExecResult{ExitCode: -1}, err
	}
	return client.Run(ctx, cmd)
}

// Size returns the number of hosts with a pooled client.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Close disconnects every pooled client.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for host, client := range p.conns {
		if err := client.Disconnect(); err != nil {
			log.Warn().Err(err).Str("host", host).Msg("failed to close SSH connection")
			errs = append(errs, err)
		}
		delete(p.conns, host)
	}
	return errors.Join(errs...)
}
