package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/xraph/tally"
	"github.com/xraph/tally/api"
	"github.com/xraph/tally/debt"
	"github.com/xraph/tally/group"
	"github.com/xraph/tally/observability"
	"github.com/xraph/tally/store/memory"
	"github.com/xraph/tally/types"
)

const defaultTokenTTL = 24 * time.Hour

var errNoSecret = errors.New("jwt_secret (TALLY_JWT_SECRET) is required")

var (
	groupRef    string
	participant string
	writeBack   bool
	tokenTTL    time.Duration
)

var (
	rootCmd = &cobra.Command{
		Use:   "tally",
		Short: "Shared expense ledger with debt simplification",
		Long: `tally keeps group expenses and settlements, derives who owes whom,
and cancels circular debt without changing anyone's net position.`,
		SilenceUsage: true,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API over the ledger file",
		Long:  `Loads the ledger file, serves the HTTP API and Prometheus metrics, and writes the file back after every change and on shutdown.`,
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	balancesCmd = &cobra.Command{
		Use:   "balances",
		Short: "Print pairwise balances per group",
		Args:  cobra.NoArgs,
		RunE:  runBalances,
	}
	totalsCmd = &cobra.Command{
		Use:   "totals",
		Short: "Print every member's net position per group",
		Args:  cobra.NoArgs,
		RunE:  runTotals,
	}
	simplifyCmd = &cobra.Command{
		Use:   "simplify",
		Short: "Cancel circular debts",
		Long:  `Shows the debts simplification would cancel. With --write the resulting simplification entries are appended to the ledger file.`,
		Args:  cobra.NoArgs,
		RunE:  runSimplify,
	}
	tokenCmd = &cobra.Command{
		Use:   "token [participant]",
		Short: "Issue an API token for a participant",
		Args:  cobra.ExactArgs(1),
		RunE:  runToken,
	}
)

// openLedger builds a ledger over the memory store and loads the ledger
// file into it when one exists.
func openLedger(ctx context.Context, opts ...tally.Option) (*tally.Ledger, []*group.Group, error) {
	opts = append([]tally.Option{
		tally.WithLogger(logger),
		tally.WithTolerance(cfg.Tolerance),
		tally.WithLockTimeout(cfg.LockTimeout),
	}, opts...)

	l := tally.New(memory.New(), opts...)
	if err := l.Start(ctx); err != nil {
		return nil, nil, err
	}

	f, err := readLedgerFile(cfg.LedgerFile)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("ledger file not found, starting empty", "path", cfg.LedgerFile)
		return l, nil, nil
	}
	if err != nil {
		_ = l.Stop()
		return nil, nil, err
	}

	groups, err := f.load(ctx, l)
	if err != nil {
		_ = l.Stop()
		return nil, nil, err
	}
	logger.Debug("ledger file loaded", "path", cfg.LedgerFile, "groups", len(groups))
	return l, groups, nil
}

func selectGroups(groups []*group.Group) ([]*group.Group, error) {
	if groupRef == "" {
		return groups, nil
	}
	g, err := findGroup(groups, groupRef)
	if err != nil {
		return nil, err
	}
	return []*group.Group{g}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	if cfg.JWTSecret == "" {
		return errNoSecret
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	persist := newFileSync(cfg.LedgerFile, logger)
	registry := prometheus.NewRegistry()

	l, _, err := openLedger(ctx, serveOptions(persist, registry)...)
	if err != nil {
		return err
	}
	defer l.Stop()
	persist.attach(l)

	server := newServer(l, registry)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "addr", cfg.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// serveOptions registers the file write-back and metrics plugins.
func serveOptions(persist *fileSync, registry *prometheus.Registry) []tally.Option {
	opts := []tally.Option{
		tally.WithPlugin(persist),
		tally.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(registry))),
	}
	if cfg.AutoSimplify {
		opts = append(opts, tally.WithAutoSimplify(cfg.AutoSimplifyInterval))
	}
	return opts
}

func newServer(l *tally.Ledger, registry *prometheus.Registry) *http.Server {
	return &http.Server{
		Addr: cfg.Addr,
		Handler: api.New(l, []byte(cfg.JWTSecret),
			api.WithLogger(logger),
			api.WithAllowedOrigins(cfg.AllowedOrigins...),
			api.WithMetrics(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
		).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func runBalances(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	l, groups, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Stop()

	groups, err = selectGroups(groups)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	for _, g := range groups {
		if participant != "" {
			balances, err := l.Balances(ctx, g.ID, types.Participant(participant))
			if err != nil {
				return err
			}
			others := make([]types.Participant, 0, len(balances))
			for p := range balances {
				others = append(others, p)
			}
			slices.Sort(others)
			for _, other := range others {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", g.Name, participant, other, balances[other])
			}
			continue
		}

		graph, err := l.Graph(ctx, g.ID)
		if err != nil {
			return err
		}
		printEdges(w, g, graph.Edges())
	}
	return nil
}

func runTotals(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	l, groups, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Stop()

	groups, err = selectGroups(groups)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	for _, g := range groups {
		totals, err := l.GroupTotals(ctx, g.ID)
		if err != nil {
			return err
		}
		for _, m := range g.Members {
			fmt.Fprintf(w, "%s\t%s\t%s\n", g.Name, m, totals[m])
		}
	}
	return nil
}

func runSimplify(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	l, groups, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Stop()

	selected, err := selectGroups(groups)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, g := range selected {
		run := l.Preview
		if writeBack {
			run = l.Simplify
		}
		res, err := run(ctx, g.ID)
		if err != nil {
			return fmt.Errorf("group %q: %w", g.Name, err)
		}
		if len(res.Edges) == 0 {
			fmt.Fprintf(w, "%s\tno circular debt\n", g.Name)
			continue
		}
		for _, e := range res.Edges {
			fmt.Fprintf(w, "%s\tcancel %s -> %s\t%s\n", g.Name, e.From, e.To, types.New(e.Amount, g.Currency))
		}
		printEdges(w, g, res.After.Edges())
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !writeBack {
		return nil
	}
	f, err := dump(ctx, l, groups)
	if err != nil {
		return err
	}
	if err := writeLedgerFile(cfg.LedgerFile, f); err != nil {
		return err
	}
	logger.Info("ledger file updated", "path", cfg.LedgerFile)
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	if cfg.JWTSecret == "" {
		return errNoSecret
	}
	token, err := api.IssueToken([]byte(cfg.JWTSecret), types.Participant(args[0]), tokenTTL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}

func printEdges(w io.Writer, g *group.Group, edges []debt.Edge) {
	if len(edges) == 0 {
		fmt.Fprintf(w, "%s\tsettled\n", g.Name)
		return
	}
	for _, e := range edges {
		fmt.Fprintf(w, "%s\t%s owes %s\t%s\n", g.Name, e.From, e.To, types.New(e.Amount, g.Currency))
	}
}
