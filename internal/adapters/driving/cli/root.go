// Package cli is the cobra command surface of the exporter.
//
// Commands resolve their configuration through the file/env loader, overlay
// their own flags and hand off to the core services. Construction of the
// platform client, run store and writer happens behind swappable factory
// functions so command behaviour is testable without network or disk.
package cli

import (
	"bufio"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	configfile "github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/adapters/driven/config/file"
	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/domain"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "pcs-code-export",
	Short: "Export Prisma Cloud code-security findings to CSV",
	Long: `pcs-code-export drains the Prisma Cloud code-security API and writes the
reconciled findings to a fixed-column CSV file.

Repositories are partitioned by default branch and fetched concurrently under
a bounded in-flight limit; findings are deduplicated into work units, enriched
with per-resource policy details and joined with repository metadata before
export.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default ~/.pcs-code-export/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")
}

// loadConfig resolves defaults, the config file, the environment and the
// shared flags, in that order.
func loadConfig() (domain.Config, error) {
	cfg, err := configfile.Load(cfgFile)
	if err != nil {
		return domain.Config{}, err
	}
	if verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

// promptCredentials asks for missing API credentials when running on a
// terminal. Non-interactive runs fall through to config validation instead.
func promptCredentials(cmd *cobra.Command, cfg *domain.Config) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return
	}
	if cfg.AccessKey == "" {
		cmd.Print("Access key ID: ")
		cfg.AccessKey = readLine()
	}
	if cfg.SecretKey == "" {
		cmd.Print("Secret key: ")
		cfg.SecretKey = readSecret()
		cmd.Println()
	}
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine() string {
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// readSecret reads a credential without echo, falling back to a regular
// line read when no terminal is attached.
//
//nolint:errcheck // CLI helper, error ignored for UX
func readSecret() string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	return readLine()
}
