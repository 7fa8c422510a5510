package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/connectors/prismacloud"
	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/domain"
	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/ports/driving"
	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/logger"
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List repositories scanned by the platform",
	Long: `Lists every repository the platform has scanned, with its id, default
branch, visibility and last scan date.`,
	RunE: runRepos,
}

func init() {
	rootCmd.AddCommand(reposCmd)
}

// newRepositoryLister builds the platform client for the repos command.
// Tests swap it for a mock.
var newRepositoryLister = func(ctx context.Context, cfg domain.Config) (driving.RepositoryLister, func(), error) {
	api := prismacloud.NewClient(ctx, prismacloud.Config{
		BaseURL:           cfg.APIURL,
		AccessKey:         cfg.AccessKey,
		SecretKey:         cfg.SecretKey,
		PageSize:          cfg.PageSize,
		RefreshEvery:      cfg.RefreshEvery,
		RequestsPerSecond: cfg.RatePerSecond,
	})
	return api, func() {}, nil
}

func runRepos(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	promptCredentials(cmd, &cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(logger.Config{Verbose: cfg.Verbose, Dir: cfg.LogDir}); err != nil {
		return fmt.Errorf("initialising logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lister, cleanup, err := newRepositoryLister(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	repos, err := lister.ListRepositories(ctx)
	if err != nil {
		return fmt.Errorf("failed to list repositories: %w", err)
	}

	if len(repos) == 0 {
		cmd.Println("No repositories found.")
		return nil
	}

	cmd.Println("Scanned repositories:")
	cmd.Println()
	for i := range repos {
		r := &repos[i]
		cmd.Printf("  %s\n", r.DerivedKey())
		cmd.Printf("    ID:         %s\n", r.ID)
		cmd.Printf("    Branch:     %s\n", r.DefaultBranch)
		cmd.Printf("    Visibility: %s\n", visibility(r.IsPublic))
		if r.LastScanDate != "" {
			cmd.Printf("    Last scan:  %s\n", r.LastScanDate)
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d repositories\n", len(repos))
	return nil
}

func visibility(public bool) string {
	if public {
		return "public"
	}
	return "private"
}
