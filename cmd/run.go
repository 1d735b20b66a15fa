package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjrosen/strata/internal/demo"
	"github.com/zjrosen/strata/internal/log"
	"github.com/zjrosen/strata/internal/manifest"
	"github.com/zjrosen/strata/internal/pubsub"
	"github.com/zjrosen/strata/internal/scenario"
	"github.com/zjrosen/strata/internal/tracing"
	"github.com/zjrosen/strata/internal/watcher"
	"github.com/zjrosen/strata/pkg/store"
)

var (
	runManifest string
	runWatch    bool
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Run a scenario against a manifest",
	Long: `Build a store from a manifest, then run the steps of a scenario
against it. Snapshot steps print the state tree and getters as YAML.

With --watch the store stays alive after the scenario: saving the manifest
hot-updates mutations, actions and getters while keeping state, and a
snapshot is printed after each update.

Example:
  strata run scenario.yaml --manifest store.yaml
  strata run scenario.yaml --manifest store.yaml --watch`,
	Args: cobra.ExactArgs(1),
	RunE: runScenario,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runManifest, "manifest", "m", "store.yaml", "module manifest")
	runCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "hot-update the store when the manifest changes")
}

func runScenario(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cleanup, err := setupLogging(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog := demo.Catalog()
	def, err := manifest.LoadDefinition(runManifest, catalog)
	if err != nil {
		return err
	}
	sc, err := scenario.Load(args[0])
	if err != nil {
		return err
	}

	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() { _ = provider.Shutdown(context.Background()) }()

	opts := []store.Option{
		store.WithStrict(cfg.Strict),
		store.WithGetterCache(cfg.Getters.Cache),
	}
	if provider.Enabled() {
		opts = append(opts, store.WithTracer(provider.Tracer()))
	}
	if cfg.Devtools {
		broker := pubsub.NewBroker[any]()
		defer broker.Close()
		go logDevtools(ctx, broker)
		opts = append(opts, store.WithDevtools(pubsub.NewEventSink(broker)))
	}

	s, err := store.New(def, opts...)
	if err != nil {
		return fmt.Errorf("building store: %w", err)
	}

	runner := scenario.NewRunner(s, catalog, cmd.OutOrStdout())
	if err := runner.Run(ctx, sc); err != nil {
		return err
	}
	if !runWatch {
		return nil
	}
	return watchManifest(ctx, s, runner, catalog)
}

// watchManifest hot-updates s each time the manifest changes, until ctx is
// done.
func watchManifest(ctx context.Context, s *store.Store, runner *scenario.Runner, catalog *manifest.Catalog) error {
	wcfg := watcher.DefaultConfig(runManifest)
	wcfg.Debounce = cfg.Watch.Debounce
	w, err := watcher.New(wcfg)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	changes, err := w.Start()
	if err != nil {
		return err
	}
	log.Info(log.CatWatcher, "watching manifest", "path", runManifest)

	snapshot := &scenario.Scenario{Steps: []scenario.Step{{Snapshot: "hot update"}}}
	for {
		select {
		case <-ctx.Done():
			return nil
		case path := <-changes:
			def, err := manifest.LoadDefinition(path, catalog)
			if err != nil {
				log.ErrorErr(log.CatHot, "manifest reload failed", err, "path", path)
				continue
			}
			if err := s.HotUpdate(def); err != nil {
				log.ErrorErr(log.CatHot, "hot update incomplete", err, "path", path)
			}
			if err := runner.Run(ctx, snapshot); err != nil {
				return err
			}
		}
	}
}

func logDevtools(ctx context.Context, broker *pubsub.Broker[any]) {
	for ev := range broker.Subscribe(ctx) {
		log.Info(log.CatPlugin, "devtools event", "event", ev.Type, "id", ev.ID, "payload", ev.Payload)
	}
}
