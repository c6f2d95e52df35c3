package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/medusa-ds9/medusad/internal/adminhttp"
	"github.com/medusa-ds9/medusad/internal/clog"
	"github.com/medusa-ds9/medusad/internal/config"
	"github.com/medusa-ds9/medusad/internal/errs"
	"github.com/medusa-ds9/medusad/internal/ioloop"
	"github.com/medusa-ds9/medusad/internal/metrics"
	"github.com/medusa-ds9/medusad/internal/staticconfig"
	"golang.org/x/sync/errgroup"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	app := &cli.App{
		Name:        "medusad",
		Usage:       "user-space authorization server for the Medusa DS9 security module",
		Version:     Version,
		HideVersion: false,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to the YAML static config file"},
			&cli.StringFlag{Name: "device", Usage: "override the device path from config"},
			&cli.StringFlag{Name: "listen", Usage: "override the admin HTTP listen address from config"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		if errs.IsConnection(err) {
			fmt.Fprintln(os.Stderr, "medusad: connection closed:", err)
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "medusad: fatal:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	staticCfg, err := staticconfig.Load(c.String("config"))
	if err != nil {
		return errors.Wrap(err, "medusad: loading static config")
	}
	if device := c.String("device"); device != "" {
		staticCfg.Device = device
	}
	if listen := c.String("listen"); listen != "" {
		staticCfg.Listen = listen
	}

	log := clog.NewLogger()
	if provider, ok := clog.DefaultProvider(log); ok {
		if err := clog.Setup(provider, staticCfg.LogLevel, staticCfg.LogToStdout, staticCfg.LogDir,
			staticCfg.RotateMaxSizeMB, staticCfg.RotateMaxBackups, staticCfg.RotateMaxAgeDays, staticCfg.RotateCompress); err != nil {
			return errors.Wrap(err, "medusad: configuring logger")
		}
	}

	log.Critical("medusad starting, pid %d, version %s", os.Getpid(), Version)

	policy, err := defaultPolicy()
	if err != nil {
		return errors.Wrap(err, "medusad: building policy config")
	}

	metrics.Register(prometheus.DefaultRegisterer)

	admin := adminhttp.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return admin.ListenAndServe(staticCfg.Listen)
	})

	g.Go(func() error {
		<-gctx.Done()
		return admin.Shutdown(context.Background())
	})

	g.Go(func() error {
		device, err := os.OpenFile(staticCfg.Device, os.O_RDWR, 0)
		if err != nil {
			return errors.Wrapf(err, "medusad: opening device %q", staticCfg.Device)
		}
		defer device.Close()

		conn, err := ioloop.Open(device, device, policy, log)
		if err != nil {
			return errors.Wrap(err, "medusad: handshake")
		}

		admin.SetReady(true)
		log.Critical("medusad ready, serving %s", staticCfg.Device)

		return conn.Run(gctx)
	})

	err = g.Wait()
	log.Critical("medusad stopping")
	return err
}

// defaultPolicy builds the minimal built-in policy config this binary
// ships with. Application-specific policy authoring lives outside this
// module entirely; what's here exists only so the binary is runnable.
func defaultPolicy() (*config.Config, error) {
	b := config.NewBuilder()
	b.AddSpace(config.NewSpaceBuilder().WithName("trusted").WithPathRecursive("fs/"))
	b.AddHierarchyEventHandler("open", "fs", "filename", false)
	return b.Build()
}
