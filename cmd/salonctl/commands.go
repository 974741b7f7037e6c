package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	bookingrepo "github.com/ovaphlow/pitchfork/service-salon/internal/booking/repo"
	"github.com/ovaphlow/pitchfork/service-salon/internal/maintenance"
	"github.com/ovaphlow/pitchfork/service-salon/internal/worker"
	workerrepo "github.com/ovaphlow/pitchfork/service-salon/internal/worker/repo"
	"github.com/ovaphlow/pitchfork/service-salon/pkg/database"
)

// dbEnv is the slice of the service configuration the CLI needs.
type dbEnv struct {
	Driver  string        `envconfig:"DATABASE_DRIVER" default:"postgres"`
	URL     string        `envconfig:"DATABASE_URL"`
	Timeout time.Duration `envconfig:"DATABASE_TIMEOUT" default:"5s"`
}

type options struct {
	driver  string
	dsn     string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "salonctl",
		Short:         "Operator tool for the salon booking service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.driver, "driver", "", "database driver (postgres, sqlite); defaults to DATABASE_DRIVER")
	root.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "database DSN; defaults to DATABASE_URL")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newMigrateCmd(opts),
		newSweepCmd(opts),
		newApproveWorkerCmd(opts),
		newWorkersCmd(opts),
	)
	return root
}

func (o *options) open() (*sqlx.DB, error) {
	var env dbEnv
	if err := envconfig.Process("", &env); err != nil {
		return nil, err
	}
	if o.driver != "" {
		env.Driver = o.driver
	}
	if o.dsn != "" {
		env.URL = o.dsn
	}
	if env.URL == "" {
		return nil, fmt.Errorf("no database configured: set DATABASE_URL or --dsn")
	}
	return database.Connect(database.Config{Driver: env.Driver, DSN: env.URL, Timeout: env.Timeout})
}

func (o *options) logger() *zap.SugaredLogger {
	if !o.verbose {
		return zap.NewNop().Sugar()
	}
	lg, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return lg.Sugar()
}

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the bookings and workers tables if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.open()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.EnsureSchema(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func newSweepCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire past bookings and purge old deleted ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.open()
			if err != nil {
				return err
			}
			defer db.Close()
			res, err := maintenance.NewSweeper(bookingrepo.NewBookingRepo(db), nil, opts.logger()).Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired: %d\npurged: %d\n", res.Expired, res.Purged)
			return nil
		},
	}
}

func newApproveWorkerCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "approve-worker <validation-token>",
		Short: "Validate a worker account without opening the emailed link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.open()
			if err != nil {
				return err
			}
			defer db.Close()
			svc := worker.NewService(workerrepo.NewWorkerRepo(db), nil, nil, nil, nil, opts.logger(), worker.Config{})
			view, err := svc.Validate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "worker %d (%s) validated\n", view.ID, view.Username)
			return nil
		},
	}
}

func newWorkersCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "workers",
		Short: "List worker accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.open()
			if err != nil {
				return err
			}
			defer db.Close()
			svc := worker.NewService(workerrepo.NewWorkerRepo(db), nil, nil, nil, nil, opts.logger(), worker.Config{})
			rows, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tVALIDATED\tCREATED")
			for _, w := range rows {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%s\n", w.ID, w.Username, w.Email, w.IsValidated, w.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}
