package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/leave-decision-api/internal/repository"
	"github.com/noah-isme/leave-decision-api/internal/service"
	"github.com/noah-isme/leave-decision-api/pkg/cache"
	"github.com/noah-isme/leave-decision-api/pkg/config"
	"github.com/noah-isme/leave-decision-api/pkg/database"
	"github.com/noah-isme/leave-decision-api/pkg/logger"
)

const (
	rootUsage     = "leave-import"
	rootShortDesc = "Bulk imports reference data from CSV files"
	runUsage      = "run"
	runShortDesc  = "Imports every file listed in a manifest"
	runExample    = "leave-import run --manifest import.yml"
	fileUsage     = "file <entity> <path>"
	fileShortDesc = "Imports a single CSV file"
	fileExample   = "leave-import file holidays data/holidays.csv"
)

var (
	flagManifest string
	flagStrict   bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           rootUsage,
		Short:         rootShortDesc,
		SilenceUsage:  true,
	}

	run := &cobra.Command{
		Use:     runUsage,
		Short:   runShortDesc,
		Example: runExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := loadManifest(flagManifest)
			if err != nil {
				return err
			}
			return withImporter(cmd.Context(), func(ctx context.Context, importer rowImporter) error {
				reports, err := runManifest(ctx, importer, manifest)
				if werr := writeReports(cmd.OutOrStdout(), reports); werr != nil {
					return werr
				}
				if err != nil {
					return err
				}
				return checkStrict(reports, flagStrict)
			})
		},
	}
	run.Flags().StringVarP(&flagManifest, "manifest", "m", "import.yml", "path to the import manifest")

	file := &cobra.Command{
		Use:     fileUsage,
		Short:   fileShortDesc,
		Example: fileExample,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withImporter(cmd.Context(), func(ctx context.Context, importer rowImporter) error {
				report, err := importFile(ctx, importer, args[0], args[1])
				if err != nil {
					return err
				}
				if err := writeReports(cmd.OutOrStdout(), []reportEntry{{File: args[1], Report: report}}); err != nil {
					return err
				}
				return checkStrict([]reportEntry{{File: args[1], Report: report}}, flagStrict)
			})
		},
	}

	root.PersistentFlags().BoolVar(&flagStrict, "strict", false, "exit with an error when any row is rejected")
	root.AddCommand(run, file)
	return root
}

// withImporter connects the stores from the environment configuration and
// hands an ImportService to fn.
func withImporter(ctx context.Context, fn func(context.Context, rowImporter) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Printf("falling back to a no-op logger: %v", err)
		logr = zap.NewNop()
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	var cacheRepo service.CacheRepository
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		redisRepo := repository.NewCacheRepository(client, logr)
		defer redisRepo.Close() //nolint:errcheck
		cacheRepo = redisRepo
	}

	importer := service.NewImportService(service.ImportDeps{
		Directory:  repository.NewDirectoryRepository(db),
		Employees:  repository.NewEmployeeRepository(db),
		LeaveTypes: repository.NewLeaveTypeRepository(db),
		Holidays:   repository.NewHolidayRepository(db),
		Headers:    repository.NewHeaderRepository(db),
		Cache:      service.NewCacheService(cacheRepo, metrics, cfg.Holidays.CacheTTL, logr, cfg.Redis.Enabled),
		Audit:      repository.NewAuditRepository(db),
	}, logr)

	return fn(ctx, importer)
}
