package cachecmder

import (
	"context"
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chapterhouse/docbot/pkg/gemini"
	"github.com/chapterhouse/docbot/pkg/llm"
	"github.com/chapterhouse/docbot/server"
)

const cacheLongDesc string = `Manage the provider-side context cache of the reference document.

The serving process resolves the cache by display name at startup and never
mutates it. Use these commands to create the cache ahead of a deploy, check
what the service would resolve, or delete a cache for a retired document.

Configuration comes from the same environment variables as the service
(BUCKET_NAME, BLOB_NAME, PROJECT_ID, LOCATION, CACHE_NAME).

Examples:
  docbotctl cache status
  docbotctl cache create
  docbotctl cache delete`

const cacheShortDesc string = "Manage the document context cache"

type cacheCommander struct {
	debug bool
}

func NewCacheCmd() *cobra.Command {
	cmder := &cacheCommander{}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: cacheShortDesc,
		Long:  cacheLongDesc,
	}

	cmd.PersistentFlags().BoolVar(&cmder.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the cache the service would resolve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.runStatus(cmd.Context(), cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Create the cache from the source document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.runCreate(cmd.Context(), cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Delete the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.runDelete(cmd.Context(), cmd)
		},
	})

	return cmd
}

func (c *cacheCommander) client(ctx context.Context) (*gemini.Client, error) {
	_ = godotenv.Load()

	cfg, err := server.FromEnv()
	if err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	if c.debug {
		logger, _ = zap.NewDevelopment()
	}

	return gemini.NewClient(ctx, gemini.Config{
		ProjectID:          cfg.ProjectID,
		Location:           cfg.Location,
		ModelName:          cfg.ModelName,
		Bucket:             cfg.Bucket,
		Blob:               cfg.Blob,
		CacheName:          cfg.CacheName,
		CacheTTL:           cfg.CacheTTL,
		SystemInstructions: cfg.SystemInstructions,
	}, logger)
}

func (c *cacheCommander) runStatus(ctx context.Context, cmd *cobra.Command) error {
	client, err := c.client(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	info, err := client.FindCache(ctx)
	if errors.Is(err, gemini.ErrCacheNotFound) {
		fmt.Fprintln(cmd.OutOrStdout(), "No cache found; the service would create one at startup.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not look up cache: %w", err)
	}

	printCache(cmd, info)
	return nil
}

func (c *cacheCommander) runCreate(ctx context.Context, cmd *cobra.Command) error {
	client, err := c.client(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if existing, err := client.FindCache(ctx); err == nil {
		return fmt.Errorf("cache %q already exists as %s", existing.DisplayName, existing.Name)
	} else if !errors.Is(err, gemini.ErrCacheNotFound) {
		return fmt.Errorf("could not look up cache: %w", err)
	}

	info, err := client.CreateCache(ctx)
	if err != nil {
		return fmt.Errorf("could not create cache: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Created:")
	printCache(cmd, info)
	return nil
}

func (c *cacheCommander) runDelete(ctx context.Context, cmd *cobra.Command) error {
	client, err := c.client(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.DeleteCache(ctx); err != nil {
		return fmt.Errorf("could not delete cache: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Deleted.")
	return nil
}

func printCache(cmd *cobra.Command, info *llm.CacheInfo) {
	fmt.Fprintf(cmd.OutOrStdout(), "  name:         %s\n", info.Name)
	fmt.Fprintf(cmd.OutOrStdout(), "  display name: %s\n", info.DisplayName)
	fmt.Fprintf(cmd.OutOrStdout(), "  model:        %s\n", info.Model)
	fmt.Fprintf(cmd.OutOrStdout(), "  expires:      %s\n", info.ExpireTime)
}
