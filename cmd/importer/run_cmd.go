package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"hotel_pricing/internal/adapters/catalog"
	"hotel_pricing/internal/adapters/observability"
	redisad "hotel_pricing/internal/adapters/redis"
	"hotel_pricing/internal/app"
	"hotel_pricing/internal/domain"
	"hotel_pricing/internal/shared"
	mysqlrepo "hotel_pricing/internal/storage/mysql"
)

type runOptions struct {
	Sheet    string
	Parallel int
	Workers  int
	DryRun   bool
}

type importer interface {
	Import(ctx context.Context, who domain.Principal, req app.ImportRequest) (domain.ImportResult, error)
}

func newRunCmd(check bool) *cobra.Command {
	opts := runOptions{DryRun: check}

	cmd := &cobra.Command{
		Use:   "run <file>...",
		Short: "Import pricing workbooks into the database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, files []string) error {
			if opts.Parallel < 1 {
				return errors.New("--parallel must be at least 1")
			}
			cfg := shared.Load()
			log.Logger = observability.NewLoggerTo(cfg.AppEnv, os.Stderr)
			if opts.Workers > 0 {
				cfg.Workers = opts.Workers
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, closeFn, err := buildImportService(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			failed := importFiles(ctx, svc, files, opts, cmd.OutOrStdout())
			if failed > 0 {
				return fmt.Errorf("%d of %d file(s) failed", failed, len(files))
			}
			return nil
		},
	}
	if check {
		cmd.Use = "check <file>..."
		cmd.Short = "Validate pricing workbooks and report what an import would change, without writing"
	}

	cmd.Flags().StringVar(&opts.Sheet, "sheet", "", "sheet to read (default: auto-detect)")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 1, "files imported at the same time")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent writes per file (default: IMPORT_WORKERS)")
	return cmd
}

func buildImportService(ctx context.Context, cfg shared.Config) (*app.ImportService, func(), error) {
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db.Ping: %w", err)
	}
	repo := mysqlrepo.New(db)

	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := cache.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("redis unreachable; hotel pricing caches will not be invalidated")
	}

	var refs domain.ReferenceProvider = repo
	if cfg.CatalogBase != "" {
		client, err := catalog.New(cfg.CatalogBase, cfg.CatalogKey, cfg.CatalogRPS)
		if err != nil {
			_ = cache.Close()
			_ = db.Close()
			return nil, nil, fmt.Errorf("catalog client: %w", err)
		}
		refs = client
	}

	// operators running the CLI are trusted: no authorizer
	svc := app.NewImportService(refs, cache, nil, app.NewReconciler(repo, cfg.Workers), cfg.ReferenceTTL)
	return svc, func() {
		_ = cache.Close()
		_ = db.Close()
	}, nil
}

// importFiles imports every file, at most opts.Parallel at a time, and writes one
// JSON report line per file to out. It returns the number of failed files.
func importFiles(ctx context.Context, svc importer, files []string, opts runOptions, out io.Writer) int {
	sem := semaphore.NewWeighted(int64(opts.Parallel))
	enc := json.NewEncoder(out)
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	who := domain.Principal{Name: "cli"}
	if u := os.Getenv("USER"); u != "" {
		who.Name = "cli:" + u
	}

	report := func(rep fileReport) {
		mu.Lock()
		defer mu.Unlock()
		if !rep.OK {
			failed++
		}
		if err := enc.Encode(rep); err != nil {
			log.Error().Err(err).Str("file", rep.File).Msg("write report failed")
		}
	}

	for _, path := range files {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			report(newFileReport(path, domain.ImportResult{}, err))
			continue
		}

		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer sem.Release(1)

			data, err := os.ReadFile(path)
			if err != nil {
				report(newFileReport(path, domain.ImportResult{}, err))
				return
			}
			res, err := svc.Import(ctx, who, app.ImportRequest{
				FileName:  filepath.Base(path),
				SheetName: opts.Sheet,
				Data:      data,
				DryRun:    opts.DryRun,
			})
			if err != nil {
				log.Warn().Str("file", path).Err(err).Msg("import failed")
			}
			report(newFileReport(path, res, err))
		}(path)
	}

	wg.Wait()
	return failed
}
