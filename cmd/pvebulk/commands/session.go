package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/rs/zerolog"

	"github.com/pvebulk/pvebulk/pkg/args"
	"github.com/pvebulk/pvebulk/pkg/cluster"
	"github.com/pvebulk/pvebulk/pkg/config"
	"github.com/pvebulk/pvebulk/pkg/dispatch"
	"github.com/pvebulk/pvebulk/pkg/engine"
	"github.com/pvebulk/pvebulk/pkg/telemetry"
	"github.com/pvebulk/pvebulk/pkg/transports/ssh"
)

// commonFlags are appended to every subcommand schema.
const commonFlags = "--config:string? --log-level:choice(trace|debug|info|warn|error)? " +
	"--seed:ip? --on-missing:choice(skip|fail)=skip --dry-run:flag --yes:flag"

// session is everything one invocation builds from its configuration.
type session struct {
	cfg      *config.Config
	tel      *telemetry.Telemetry
	logger   zerolog.Logger
	pool     *ssh.Pool
	resolver *cluster.Resolver

	// exec runs actions and honors --dry-run; query runs read-only
	// commands and always executes.
	exec  *dispatch.Dispatcher
	query *dispatch.Dispatcher

	// seed is where cluster-wide queries run.
	seed   dispatch.Target
	runner *engine.Runner
	out    io.Writer
	dryRun bool
}

// open loads configuration and wires the session for values.
func (a *app) open(ctx context.Context, v args.Values) (*session, error) {
	cfg, err := config.Load(config.Resolve(v.String("config")))
	if err != nil {
		return nil, &engine.PreconditionError{Check: "config", Message: "cannot load configuration", Err: err}
	}
	if level := v.String("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if seed := v.String("seed"); seed != "" {
		cfg.Cluster.Seed = seed
	}

	tel, err := telemetry.NewTelemetry(cfg.Telemetry(a.version))
	if err != nil {
		return nil, &engine.PreconditionError{Check: "config", Message: "cannot set up telemetry", Err: err}
	}

	s := &session{
		cfg:    cfg,
		tel:    tel,
		logger: tel.Logger.Zerolog(),
		pool:   ssh.NewPool(cfg.SSHBase()),
		seed:   dispatch.Local,
		out:    a.stdout,
		dryRun: v.Bool("dry-run"),
	}

	fsys, err := a.openStore(ctx, cfg, s.pool)
	if err != nil {
		_ = s.Close(ctx)
		return nil, &engine.PreconditionError{Check: "store", Message: "cannot open cluster store", Err: err}
	}

	resolverOpts := []cluster.Option{cluster.WithLogger(tel.Logger.NewComponentLogger("cluster"))}
	if a.localAddrs != nil {
		resolverOpts = append(resolverOpts, cluster.WithLocalAddresses(a.localAddrs...))
	}
	s.resolver = cluster.NewResolver(fsys, resolverOpts...)

	if seed := cfg.Cluster.Seed; seed != "" && !s.resolver.IsLocalAddress(seed) {
		name, _ := s.resolver.NodeName(seed)
		s.seed = dispatch.Remote(name, seed)
	}

	dispatchLogger := tel.Logger.NewComponentLogger("dispatch")
	s.exec = dispatch.New(
		dispatch.WithLogger(dispatchLogger),
		dispatch.WithRemote(s.pool),
		dispatch.WithRecorder(tel.Metrics),
		dispatch.WithDryRun(s.dryRun),
	)
	s.query = dispatch.New(
		dispatch.WithLogger(dispatchLogger),
		dispatch.WithRemote(s.pool),
		dispatch.WithRecorder(tel.Metrics),
	)

	s.runner = engine.NewRunner(
		engine.WithLogger(s.logger),
		engine.WithOutput(a.stdout),
		engine.WithRecorder(tel.Metrics),
		engine.WithTracer(tel.Tracer.Tracer()),
	)

	s.logger.Debug().
		Str("root", cfg.Cluster.Root).
		Str("seed", cfg.Cluster.Seed).
		Bool("dry_run", s.dryRun).
		Msg("session ready")

	return s, nil
}

// Close releases connections and flushes telemetry.
func (s *session) Close(ctx context.Context) error {
	return errors.Join(s.pool.Close(), s.tel.Shutdown(ctx))
}

// openStore reads the cluster store from the local mount, or over SFTP from
// the seed node when one is configured.
func openStore(ctx context.Context, cfg *config.Config, pool *ssh.Pool) (fs.FS, error) {
	if cfg.Cluster.Seed == "" {
		return os.DirFS(cfg.Cluster.Root), nil
	}

	client, err := pool.Get(ctx, cfg.Cluster.Seed)
	if err != nil {
		return nil, fmt.Errorf("connect to seed %s: %w", cfg.Cluster.Seed, err)
	}
	sftpClient, err := client.SFTP()
	if err != nil {
		return nil, fmt.Errorf("open sftp on seed %s: %w", cfg.Cluster.Seed, err)
	}
	return cluster.NewSFTPFS(sftpClient, cfg.Cluster.Root), nil
}
