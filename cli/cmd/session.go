package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/cubicap/Jaculus-tools-sub000/cli/config"
	"github.com/cubicap/Jaculus-tools-sub000/controller"
	"github.com/cubicap/Jaculus-tools-sub000/iox"
	"github.com/cubicap/Jaculus-tools-sub000/runtime"
	"github.com/cubicap/Jaculus-tools-sub000/transport"
	"github.com/cubicap/Jaculus-tools-sub000/uploader"
)

// Exit codes.
const (
	// ExitFailure means the device refused or failed the operation.
	ExitFailure = 1
	// ExitUsage means the command line or config was invalid.
	ExitUsage = 2
	// ExitLink means the transport could not be opened or the link dropped.
	ExitLink = 3
)

// DefaultLogLevel keeps session chatter off the terminal unless asked for.
const DefaultLogLevel = "warn"

// streamFactory overrides how sessions open their transport (for testing).
var streamFactory runtime.StreamFactory

// sessionConfig merges the config file with command-line flags. Flags
// always win. The returned cleanup closes the trace file, if any.
func sessionConfig(c *cli.Context) (*runtime.SessionConfig, func(), error) {
	cfg, err := config.LoadOptional(c.String("config"))
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), ExitUsage)
	}

	tc := cfg.TransportConfig()
	if c.IsSet("port") || c.IsSet("socket") {
		tc.Port = c.String("port")
		tc.Socket = c.String("socket")
	}
	if c.IsSet("baudrate") {
		tc.BaudRate = c.Int("baudrate")
	}
	if tc.Port == "" && tc.Socket == "" {
		return nil, nil, cli.Exit("no device selected: use --port or --socket", ExitUsage)
	}

	sc := &runtime.SessionConfig{
		Transport:          tc,
		LogLevel:           cfg.LogLevel,
		Stdout:             c.App.Writer,
		Stderr:             c.App.ErrWriter,
		ControlTimeout:     cfg.Timeouts.Control.Duration,
		StorageTimeout:     cfg.Timeouts.Storage.Duration,
		LockAttemptTimeout: cfg.Timeouts.LockAttempt.Duration,
		StreamFactory:      streamFactory,
	}
	if c.IsSet("log-level") {
		sc.LogLevel = c.String("log-level")
	}
	if sc.LogLevel == "" {
		sc.LogLevel = DefaultLogLevel
	}

	tracePath := cfg.Trace
	if c.IsSet("trace") {
		tracePath = c.String("trace")
	}
	if tracePath == "" {
		return sc, func() {}, nil
	}
	f, err := os.Create(tracePath)
	if err != nil {
		return nil, nil, cli.Exit(fmt.Sprintf("cannot create trace file: %v", err), ExitUsage)
	}
	sc.Trace = f
	return sc, func() { iox.DiscardClose(f) }, nil
}

// withDevice opens a session, runs fn and closes the session. Errors
// from fn are mapped to exit codes.
func withDevice(c *cli.Context, fn func(ctx context.Context, d *runtime.Device) error) error {
	sc, cleanup, err := sessionConfig(c)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := c.Context
	d, err := runtime.Open(ctx, sc)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot open %s: %v", sc.Transport.Endpoint(), err), ExitLink)
	}
	defer iox.DiscardErr(d.Close)

	if err := fn(ctx, d); err != nil {
		return exitError(err)
	}
	return nil
}

// withLock runs fn while holding the device lock. The lock is released
// on every path.
func withLock(ctx context.Context, d *runtime.Device, fn func() error) (err error) {
	if err := d.Controller.Lock(ctx); err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	defer func() {
		if uerr := d.Controller.Unlock(context.WithoutCancel(ctx)); uerr != nil && err == nil {
			err = fmt.Errorf("unlock: %w", uerr)
		}
	}()
	return fn()
}

// exitError maps an operation error to a cli exit error.
func exitError(err error) error {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		return err
	}
	switch {
	case errors.Is(err, uploader.ErrLinkClosed), errors.Is(err, controller.ErrLinkClosed),
		errors.Is(err, transport.ErrNoEndpoint):
		return cli.Exit(err.Error(), ExitLink)
	default:
		var pe *uploader.PreconditionError
		if errors.As(err, &pe) {
			return cli.Exit(err.Error(), ExitUsage)
		}
		return cli.Exit(err.Error(), ExitFailure)
	}
}
