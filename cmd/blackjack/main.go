// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

// Command blackjack discovers test.yaml suites under a root directory and
// runs them against a live Kubernetes cluster, reporting one line per test
// and exiting with the aggregate pass/fail code. It keeps the teacher's
// cmd/main.go bootstrap shape (zap options built from the --log-level
// setting, ctrl.SetLogger, godotenv pre-seeding) but replaces flag.FlagSet with a cobra.Command and
// swaps "start a manager and reconcile forever" for "run every discovered
// test once and exit".
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	ctrl "sigs.k8s.io/controller-runtime"

	"blackjack.io/blackjack/internal/config"
	"blackjack.io/blackjack/internal/k8sclient"
	"blackjack.io/blackjack/internal/logging"
	"blackjack.io/blackjack/internal/metrics"
	"blackjack.io/blackjack/internal/reporter"
	"blackjack.io/blackjack/internal/scheduler"
	"blackjack.io/blackjack/internal/testrunner"
)

var setupLog = ctrl.Log.WithName("setup")

func main() {
	os.Exit(run())
}

func run() int {
	godotenv.Load("./.env")

	var (
		configPath      string
		kubeconfigPath  string
		logLevel        string
		metricsAddr     string
		timeoutScaling  float64
		userParallel    int
		clusterParallel int
		userAttempts    int
		clusterAttempts int
	)

	root := &cobra.Command{
		Use:   "blackjack [test-directory]",
		Short: "Run end-to-end operator test suites against a Kubernetes cluster",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			testDir := "."
			if len(args) == 1 {
				testDir = args[0]
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			applyFlagOverrides(&cfg, cmd.Flags(), logLevel, timeoutScaling, userParallel, clusterParallel, userAttempts, clusterAttempts)

			if err := logging.Validate(cfg.LogLevel); err != nil {
				return err
			}
			log := logging.New(cfg.LogLevel)
			ctrl.SetLogger(log)

			restConfig, err := buildRESTConfig(kubeconfigPath)
			if err != nil {
				return fmt.Errorf("building kubernetes client config: %w", err)
			}
			clients, err := k8sclient.New(restConfig)
			if err != nil {
				return fmt.Errorf("building kubernetes clients: %w", err)
			}

			tests, err := scheduler.Discover(testDir)
			if err != nil {
				return err
			}

			m := metrics.New()
			servCtx, stopServ := context.WithCancel(context.Background())
			defer stopServ()
			go func() {
				if err := m.Serve(servCtx, metricsAddr); err != nil {
					log.Error(err, "metrics server stopped")
				}
			}()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx = testrunner.WithTimeoutScale(ctx, cfg.TimeoutScaling)

			setupLog.Info("starting test run", "tests", len(tests), "directory", testDir)
			outcomes, err := scheduler.Run(ctx, clients, log, scheduler.Config{
				ClusterParallel: cfg.Cluster.Parallel,
				UserParallel:    cfg.User.Parallel,
				ClusterAttempts: cfg.Cluster.Attempts,
				UserAttempts:    cfg.User.Attempts,
			}, tests)
			if err != nil {
				return err
			}

			rpt := reporter.New(cmd.OutOrStdout(), os.Stdout.Fd())
			for _, o := range outcomes {
				m.RecordOutcome(o.Passed)
				rpt.Report(o)
			}
			exitCode = rpt.Summary()
			return nil
		},
	}

	flags := root.Flags()
	flags.StringVar(&configPath, "config", "", "path to a blackjack config YAML file")
	flags.StringVar(&kubeconfigPath, "kubeconfig", "", "path to a kubeconfig file (defaults to $KUBECONFIG, then in-cluster config, then ~/.kube/config)")
	flags.StringVar(&logLevel, "log-level", os.Getenv(logLevelEnvVar), "log level: debug, info, warn, or error (overrides BLACKJACK_LOG_LEVEL and the config file)")
	flags.StringVar(&metricsAddr, "metrics-bind-address", ":8080", "address the Prometheus metrics endpoint binds to")
	flags.Float64Var(&timeoutScaling, "timeout-scaling", 0, "multiplier applied to every wait's timeout (overrides config file)")
	flags.IntVar(&userParallel, "parallel", 0, "max concurrent user-scoped tests (overrides config file)")
	flags.IntVar(&clusterParallel, "parallel-cluster", 0, "max concurrent cluster-scoped tests (overrides config file)")
	flags.IntVar(&userAttempts, "attempts", 0, "retry attempts for user-scoped tests (overrides config file)")
	flags.IntVar(&clusterAttempts, "attempts-cluster", 0, "retry attempts for cluster-scoped tests (overrides config file)")

	if err := root.Execute(); err != nil {
		setupLog.Error(err, "run failed")
		return reporter.ExitInvalidInput
	}
	return exitCode
}

// exitCode is set by RunE and read back by run; cobra's Execute gives no
// other path for RunE to hand a process exit code up to main.
var exitCode int

// logLevelEnvVar is read as the --log-level flag's default, so the
// precedence from lowest to highest is: the config file, then
// BLACKJACK_LOG_LEVEL, then an explicit --log-level (spec.md §6 Environment).
const logLevelEnvVar = "BLACKJACK_LOG_LEVEL"

func applyFlagOverrides(cfg *config.Config, flags interface {
	Changed(string) bool
}, logLevel string, timeoutScaling float64, userParallel, clusterParallel, userAttempts, clusterAttempts int) {
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("timeout-scaling") {
		cfg.TimeoutScaling = timeoutScaling
	}
	if flags.Changed("parallel") {
		cfg.User.Parallel = userParallel
	}
	if flags.Changed("parallel-cluster") {
		cfg.Cluster.Parallel = clusterParallel
	}
	if flags.Changed("attempts") {
		cfg.User.Attempts = userAttempts
	}
	if flags.Changed("attempts-cluster") {
		cfg.Cluster.Attempts = clusterAttempts
	}
}

// buildRESTConfig resolves a REST config: kubeconfigPath if given, else
// $KUBECONFIG; when both are empty, in-cluster config, falling back to the
// default kubeconfig file (~/.kube/config) via clientcmd.
func buildRESTConfig(kubeconfigPath string) (*rest.Config, error) {
	if kubeconfigPath == "" {
		kubeconfigPath = os.Getenv("KUBECONFIG")
	}
	if kubeconfigPath == "" {
		if cfg, err := rest.InClusterConfig(); err == nil {
			return cfg, nil
		}
		kubeconfigPath = clientcmd.RecommendedHomeFile
	}
	return clientcmd.BuildConfigFromFlags("", kubeconfigPath)
}
