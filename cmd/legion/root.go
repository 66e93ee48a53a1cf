package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"legion-prm/pkg/client"
	"legion-prm/pkg/config"
	"legion-prm/pkg/gen"
	"legion-prm/pkg/health"
	"legion-prm/pkg/logger"
	"legion-prm/pkg/minio"
	"legion-prm/pkg/session"
	"legion-prm/services/agent"
	"legion-prm/services/assignment"
	"legion-prm/services/auth"
	"legion-prm/services/batch"
	"legion-prm/services/campaign"
	"legion-prm/services/monitoring"
	"legion-prm/services/progress"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const sessionExpiredMessage = "session expired, run `legion auth login`"

type services struct {
	Session     *session.Session
	Auth        *auth.Service
	Batches     *batch.Service
	Progress    *progress.Service
	Campaigns   *campaign.Service
	Assignments *assignment.Service
	Monitoring  *monitoring.Service
	Agents      *agent.Service
	Health      *health.Checker
}

type cli struct {
	configFile string
	envFile    string
	verbose    bool

	in     *bufio.Reader
	stdin  io.Reader
	out    io.Writer
	errOut io.Writer

	svc *services
	app *fx.App
}

func newCLI(stdin io.Reader, out, errOut io.Writer) *cli {
	return &cli{stdin: stdin, in: bufio.NewReader(stdin), out: out, errOut: errOut}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "legion",
		Short: "Admin and agent console for Legion PRM",
		Long: `legion talks to the Legion PRM API.

Admins upload contact lists, generate and assign VCF batches, run campaigns,
review assignments and monitor agents. Agents report their daily progress,
download batches and join campaigns.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.start(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.stop(cmd.Context())
		},
	}
	root.SetIn(c.stdin)
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	root.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "Config file (default: ./config.yaml or $XDG_CONFIG_HOME/legion/config.yaml)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", "", "Env file to load (default: .env)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newAuthCmd(c),
		newAdminCmd(c),
		newAgentCmd(c),
		newDoctorCmd(c),
	)
	return root
}

// start wires the services unless they were provided up front.
func (c *cli) start(ctx context.Context) error {
	if c.svc == nil {
		if c.verbose {
			_ = os.Setenv("LOG_LEVEL", "debug")
		}

		var s services
		app := fx.New(
			fx.NopLogger,
			fx.Supply(config.Options{File: c.configFile, EnvFile: c.envFile}),
			config.Module,
			logger.Module,
			gen.Module,
			session.Module,
			client.Module,
			minio.Module,
			batch.Module,
			progress.Module,
			campaign.Module,
			assignment.Module,
			monitoring.Module,
			agent.Module,
			auth.Module,
			health.Module,
			fx.Invoke(func(*zap.Logger) {}),
			fx.Populate(
				&s.Session,
				&s.Auth,
				&s.Batches,
				&s.Progress,
				&s.Campaigns,
				&s.Assignments,
				&s.Monitoring,
				&s.Agents,
				&s.Health,
			),
		)
		if err := app.Err(); err != nil {
			return err
		}
		if err := app.Start(ctx); err != nil {
			return err
		}
		c.app = app
		c.svc = &s
	}

	c.svc.Session.OnAuthFailure(func() {
		fmt.Fprintln(c.errOut, sessionExpiredMessage)
	})
	return nil
}

func (c *cli) stop(ctx context.Context) error {
	if c.app == nil {
		return nil
	}
	_ = zap.L().Sync()
	return c.app.Stop(ctx)
}

func (c *cli) printer() *printer {
	return newPrinter(c.out)
}
