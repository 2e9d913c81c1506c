package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/certwatch/core/certstate"
	"github.com/dmitrymomot/certwatch/core/certstore"
	"github.com/dmitrymomot/certwatch/core/config"
	"github.com/dmitrymomot/certwatch/core/domain"
	"github.com/dmitrymomot/certwatch/core/scheduler"
)

var rootCmd = &cobra.Command{
	Use:           "certwatch",
	Short:         "TLS certificate lifecycle manager for an nginx reverse proxy",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagJSONLogs bool
	flagForce    bool
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSONLogs, "log-json", false, "emit logs as JSON")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the renewal daemon with the operational API",
		RunE:  runDaemon,
	}

	renewCmd := &cobra.Command{
		Use:   "renew",
		Short: "Run one renewal cycle and exit",
		RunE:  runRenew,
	}
	renewCmd.Flags().BoolVar(&flagForce, "force", false, "renew even when the current certificate is not due")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the current certificate state as JSON",
		RunE:  runStatus,
	}

	rootCmd.AddCommand(runCmd, renewCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "certwatch:", err)
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(flagJSONLogs)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(a.srv.Run(ctx, a.handler))

	a.log.Info("certwatch daemon started")
	return g.Wait()
}

func runRenew(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(flagJSONLogs)
	if err != nil {
		return err
	}

	outcome, err := a.sched.RunCycle(ctx, flagForce)
	if err != nil {
		return err
	}

	printJSON(outcome)
	if outcome.Result == scheduler.ResultFailed {
		return errors.New(outcome.Detail)
	}
	return nil
}

// runStatus inspects the store directly so it works without proxy or CA
// settings in the environment.
func runStatus(_ *cobra.Command, _ []string) error {
	var ac appConfig
	if err := config.Load(&ac); err != nil {
		return fmt.Errorf("load app config: %w", err)
	}

	dom, err := domain.Resolve()
	if err != nil {
		return err
	}

	store, err := certstore.New(ac.CertDir)
	if err != nil {
		return err
	}

	rec, loadErr := store.Load(dom.Domain)
	st := scheduler.Status{
		Domain: dom.Domain,
		State:  certstate.Evaluate(rec, loadErr, dom.Domain, dom.Threshold(), time.Now()),
	}
	if rec != nil {
		st.Issuer = rec.Issuer
		st.NotBefore = rec.NotBefore
		st.NotAfter = rec.NotAfter
	}

	printJSON(st)
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
