// Command lockcd is the host-resident daemon: it loads and attaches lockc's
// BPF programs, runs the fanotify runtime watcher, and serves metrics and
// health endpoints.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/lockc-project/lockc/pkg/bpf"
	"github.com/lockc-project/lockc/pkg/config"
	"github.com/lockc-project/lockc/pkg/controlplane"
	"github.com/lockc-project/lockc/pkg/events"
	"github.com/lockc-project/lockc/pkg/log"
	"github.com/lockc-project/lockc/pkg/metrics"
	"github.com/lockc-project/lockc/pkg/resolver"
	"github.com/lockc-project/lockc/pkg/runtimewatcher"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "lockcd",
	Short:   "lockcd - mandatory access control daemon for container workloads",
	Long:    `lockcd loads lockc's eBPF/LSM programs, watches runc and containerd-shim invocations via fanotify, and enforces per-container policy levels.`,
	Version: Version,
	RunE:    runDaemon,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("lockcd version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	rootCmd.Flags().String("config", config.DefaultConfigPath, "Path to lockc.yaml configuration")
	rootCmd.Flags().String("bpf-object", bpf.DefaultObjectPath, "Path to the compiled lockc.bpf.o object")
	rootCmd.Flags().String("pin-dir", bpf.DefaultPinDir, "Directory under /sys/fs/bpf to pin lockc's maps")
	rootCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address to serve /metrics, /health, /ready on")
	rootCmd.Flags().Int("queue-capacity", 256, "Control-plane command queue capacity")
	rootCmd.Flags().String("kubeconfig", "", "Path to a kubeconfig file, used when no in-cluster config is available (without either, Kubernetes policy resolution is disabled)")

	cobra.OnInitialize(initLogging)
}

// initLogging starts from LOCKC_LOG_LEVEL/LOCKC_LOG_FMT and lets
// --log-level/--log-json override them when the operator actually passed
// those flags, so the documented environment interface still drives the
// daemon when no flag is given.
func initLogging() {
	cfg := log.ConfigFromEnv()

	flags := rootCmd.PersistentFlags()
	if flags.Changed("log-level") {
		logLevel, _ := flags.GetString("log-level")
		cfg.Level = log.Level(logLevel)
	}
	if flags.Changed("log-json") {
		logJSON, _ := flags.GetBool("log-json")
		cfg.Format = log.FormatText
		if logJSON {
			cfg.Format = log.FormatJSON
		}
	}
	log.Init(cfg)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	objectPath, _ := cmd.Flags().GetString("bpf-object")
	pinDir, _ := cmd.Flags().GetString("pin-dir")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	queueCapacity, _ := cmd.Flags().GetInt("queue-capacity")
	kubeconfig, _ := cmd.Flags().GetString("kubeconfig")

	log.Info("lockcd starting")

	paths, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	loader, err := bpf.Load(objectPath, pinDir, paths)
	if err != nil {
		metrics.RegisterComponent("loader", false, err.Error())
		return fmt.Errorf("load bpf programs: %w", err)
	}
	defer loader.Close()
	metrics.RegisterComponent("loader", true, "")
	log.WithComponent("lockcd").Info().Str("pin_dir", pinDir).Msg("bpf programs attached")

	tbl, err := loader.Tables()
	if err != nil {
		return fmt.Errorf("open kernel tables: %w", err)
	}
	defer tbl.Close()

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	go logContainerEvents(broker.Subscribe())

	maintainer := controlplane.NewMaintainer(tbl, queueCapacity).WithEvents(broker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer maintainer.Stop()
	go maintainer.Run(ctx)

	namespaceResolver := newNamespaceResolver(kubeconfig)
	bundleResolver := resolver.NewBundleResolver(namespaceResolver)
	dispatcher := runtimewatcher.NewDispatcher(bundleResolver, maintainer)

	watcher, err := runtimewatcher.New(dispatcher, paths.RuntimeBinaryPaths)
	if err != nil {
		metrics.RegisterComponent("watcher", false, err.Error())
		return fmt.Errorf("start runtime watcher: %w", err)
	}
	metrics.RegisterComponent("watcher", true, "")
	metrics.RegisterComponent("controlplane", true, "")
	watcher.Start()
	defer watcher.Stop()

	collector := metrics.NewCollector(tbl)
	collector.Start()
	defer collector.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	metricsServer := &http.Server{Addr: metricsAddr, Handler: mux}
	defer metricsServer.Shutdown(context.Background())
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithComponent("lockcd").Error().Err(err).Msg("metrics server error")
		}
	}()
	log.WithComponent("lockcd").Info().Str("addr", metricsAddr).Msg("metrics server listening")

	fmt.Println("lockcd is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down...")
	return nil
}

// logContainerEvents drains a broker subscription for the lifetime of the
// process, logging every container lifecycle event at info level. A
// dedicated goroutine rather than inline logging in the maintainer keeps
// event delivery best-effort and decoupled from the apply path.
func logContainerEvents(sub events.Subscriber) {
	for ev := range sub {
		log.WithContainer(ev.ContainerID).Info().
			Str("event", string(ev.Type)).Str("policy", ev.PolicyLevel).
			Msg("container event")
	}
}

// newNamespaceResolver builds a K8sNamespaceResolver from an in-cluster
// config, falling back to the given kubeconfig path, and finally to nil
// (Kubernetes policy resolution disabled, every annotated bundle falls
// back to Baseline) when neither is reachable — lockcd must still start
// and enforce image-config-based policy on a non-Kubernetes host.
func newNamespaceResolver(kubeconfig string) resolver.NamespaceResolver {
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		if kubeconfig == "" {
			log.WithComponent("lockcd").Warn().Msg("no in-cluster config and no --kubeconfig given, disabling Kubernetes policy resolution")
			return nil
		}
		restConfig, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			log.WithComponent("lockcd").Warn().Err(err).Msg("failed to build kubeconfig, disabling Kubernetes policy resolution")
			return nil
		}
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		log.WithComponent("lockcd").Warn().Err(err).Msg("failed to build kubernetes clientset, disabling Kubernetes policy resolution")
		return nil
	}
	return resolver.NewK8sNamespaceResolver(clientset)
}
