// whoislookup looks up WHOIS registration data for a domain from the
// terminal or through a small web page
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/AmanuelCh/whois-domain-lookup/internal/config"
	"github.com/AmanuelCh/whois-domain-lookup/internal/dns"
	"github.com/AmanuelCh/whois-domain-lookup/internal/logging"
	"github.com/AmanuelCh/whois-domain-lookup/internal/lookup"
	"github.com/AmanuelCh/whois-domain-lookup/internal/output"
	"github.com/AmanuelCh/whois-domain-lookup/internal/server"
	"github.com/AmanuelCh/whois-domain-lookup/internal/whois"
	"github.com/AmanuelCh/whois-domain-lookup/internal/whoisapi"
)

// Version information (set during build)
var version = "dev"

// errLookupFailed is returned after a failed lookup has been rendered
var errLookupFailed = errors.New("lookup failed")

// options holds the command-line flags
type options struct {
	configFile string
	envFile    string
	verbose    bool

	format     string
	outputFile string
	provider   string
	timeout    time.Duration
	dig        bool
	staleGuard bool

	addr string
}

func main() {
	initVersion()
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errLookupFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// initVersion fills in the module version for go install builds
func initVersion() {
	if version != "dev" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:     "whoislookup",
		Short:   "WHOIS domain lookup tool",
		Version: version,
		Long: `whoislookup queries WHOIS registration data for a domain name and renders
the registrar, the registration dates, the name servers, the contact and
DNSSEC data as cards in the terminal or in a web page.

Providers:
  api     (default) remote WHOIS API, requires WHOIS_API_KEY in environment
  direct  registry WHOIS servers on port 43, no key needed`,
		Example: `  # Look up a domain
  export WHOIS_API_KEY=your_key
  whoislookup lookup example.com

  # JSON output with the live NS/SOA check
  whoislookup lookup example.com --format json --dig

  # Query registry WHOIS servers directly
  whoislookup lookup example.co.uk --provider direct

  # Serve the lookup page on :8080
  whoislookup serve --addr :8080`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.SetVersionTemplate("whoislookup version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded into the environment if present")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&opts.provider, "provider", "", "WHOIS provider: api or direct")
	rootCmd.PersistentFlags().DurationVarP(&opts.timeout, "timeout", "t", 0, "Provider request timeout (0 means none)")
	rootCmd.PersistentFlags().BoolVar(&opts.dig, "dig", false, "Query live NS and SOA records after a successful lookup")
	rootCmd.PersistentFlags().BoolVar(&opts.staleGuard, "stale-guard", false, "Ignore responses of superseded lookups")

	rootCmd.AddCommand(newLookupCmd(opts), newServeCmd(opts), newVersionCmd())
	return rootCmd
}

func newLookupCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup <domain>",
		Short: "Look up WHOIS data for a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json, or csv")
	cmd.Flags().StringVarP(&opts.outputFile, "out", "o", "", "Write output to file (default: stdout)")
	return cmd
}

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the lookup page, the websocket session and the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (default :8080)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "whoislookup version %s\n", version)
		},
	}
}

// loadConfig reads the layered configuration with changed flags on top
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	overrides := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("provider") {
		overrides["provider.kind"] = strings.ToLower(opts.provider)
	}
	if flags.Changed("timeout") {
		overrides["provider.timeout"] = opts.timeout
	}
	if flags.Changed("dig") {
		overrides["lookup.dig"] = opts.dig
	}
	if flags.Changed("stale-guard") {
		overrides["lookup.stale_guard"] = opts.staleGuard
	}
	if flags.Changed("addr") {
		overrides["server.addr"] = opts.addr
	}
	if opts.verbose {
		overrides["log.level"] = "debug"
	}

	return config.Load(config.Options{
		File:      opts.configFile,
		EnvFile:   opts.envFile,
		Overrides: overrides,
	})
}

// setup loads the configuration and builds the logger and the provider
func setup(cmd *cobra.Command, opts *options) (*config.Config, logr.Logger, lookup.Provider, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, logr.Discard(), nil, err
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, logr.Discard(), nil, err
	}

	provider, err := newProvider(cfg, log)
	if err != nil {
		return nil, logr.Discard(), nil, err
	}
	return cfg, log, provider, nil
}

// newProvider creates the WHOIS provider selected in the configuration
func newProvider(cfg *config.Config, log logr.Logger) (lookup.Provider, error) {
	switch cfg.Provider.Kind {
	case config.ProviderAPI:
		client := whoisapi.New(whoisapi.Config{
			BaseURL:   cfg.Provider.BaseURL,
			APIKey:    cfg.Provider.APIKey,
			UserAgent: "whoislookup/" + version,
			Timeout:   cfg.Provider.Timeout,
		})
		if !client.IsAvailable() {
			log.Info("No API key configured, the provider will reject lookups", "env", config.APIKeyEnv)
		}
		log.V(logging.DEBUG).Info("Using provider", "provider", client.Name(), "baseURL", cfg.Provider.BaseURL)
		return client, nil
	case config.ProviderDirect:
		client := whois.NewClient(cfg.Provider.Timeout)
		log.V(logging.DEBUG).Info("Using provider", "provider", client.Name())
		return client, nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Provider.Kind)
	}
}

func runLookup(cmd *cobra.Command, opts *options, domain string) error {
	formatter, err := output.NewFormatter(opts.format)
	if err != nil {
		return err
	}

	cfg, log, provider, err := setup(cmd, opts)
	if err != nil {
		return err
	}

	// Set up context with cancellation
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controllerOpts := []lookup.Option{lookup.WithLogger(log)}
	if cfg.Lookup.StaleGuard {
		controllerOpts = append(controllerOpts, lookup.WithStaleGuard())
	}
	controller := lookup.New(provider, controllerOpts...)

	state := <-controller.Submit(ctx, domain)
	view := &output.View{Snapshot: controller.Snapshot()}

	if success, ok := state.(lookup.Success); ok && cfg.Lookup.Dig {
		view.Delegation = dns.NewClient(cfg.Lookup.DigTimeout).Delegation(ctx, success.Record.DomainName)
	}

	if err := outputResults(cmd.OutOrStdout(), opts.outputFile, formatter, view); err != nil {
		return err
	}

	if _, failed := state.(lookup.Failure); failed {
		return errLookupFailed
	}
	return nil
}

func runServe(cmd *cobra.Command, opts *options) error {
	cfg, log, provider, err := setup(cmd, opts)
	if err != nil {
		return err
	}

	serverOpts := []server.Option{server.WithLogger(log)}
	if cfg.Lookup.Dig {
		serverOpts = append(serverOpts, server.WithDelegator(dns.NewClient(cfg.Lookup.DigTimeout)))
	}

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		StaleGuard:      cfg.Lookup.StaleGuard,
	}, provider, serverOpts...)
	return srv.ListenAndServe()
}

// validateOutputPath performs security validation on the output file path
func validateOutputPath(path string) error {
	if path == "" {
		return nil
	}

	// Clean the path to resolve any . or .. components
	cleanPath := filepath.Clean(path)

	if filepath.IsAbs(cleanPath) {
		sensitivePatterns := []string{"/etc/", "/var/", "/usr/", "/bin/", "/sbin/", "/root/"}
		for _, pattern := range sensitivePatterns {
			if strings.HasPrefix(cleanPath, pattern) {
				return fmt.Errorf("refusing to write to sensitive system location: %s", cleanPath)
			}
		}
	}

	return nil
}

func outputResults(stdout io.Writer, outputFile string, formatter output.Formatter, view *output.View) error {
	if outputFile == "" {
		return formatter.Write(stdout, view)
	}

	// Validate the output path for security
	if err := validateOutputPath(outputFile); err != nil {
		return err
	}

	// #nosec G304 -- User-provided output file path is intentional for CLI tool
	f, err := os.Create(filepath.Clean(outputFile))
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return formatter.Write(f, view)
}
