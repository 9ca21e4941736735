package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/loomline/designvault/internal/imports"
	"github.com/loomline/designvault/pkg/config"
	"github.com/loomline/designvault/pkg/db"
	"github.com/loomline/designvault/pkg/enums"
	"github.com/loomline/designvault/pkg/logger"
	"github.com/loomline/designvault/pkg/migrate"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "importer"})

	_ = godotenv.Load()

	file := flag.String("file", "", "path to the catalog CSV")
	chunks := flag.Int("chunks", 0, "number of chunks to process (0 processes the whole file)")
	actor := flag.String("actor", "", "actor uuid recorded on the audit rows")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "-file is required")
		os.Exit(2)
	}

	actorID := uuid.Nil
	if *actor != "" {
		parsed, err := uuid.Parse(*actor)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -actor: %v\n", err)
			os.Exit(2)
		}
		actorID = parsed
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "importer",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	service, err := imports.NewService(imports.ServiceParams{
		Repo:      imports.NewRepository(dbClient.DB(), cfg.Import.SubBatchSize),
		Logger:    logg,
		ChunkSize: cfg.Import.ChunkSize,
	})
	if err != nil {
		logg.Error(ctx, "failed to create import service", err)
		os.Exit(1)
	}

	if err := run(ctx, service, actorID, *file, *chunks); err != nil {
		logg.Error(ctx, "import failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, service imports.Service, actorID uuid.UUID, path string, limit int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	snap, err := service.Load(ctx, imports.LoadInput{
		ActorID:  actorID,
		FileName: filepath.Base(path),
		Body:     f,
	})
	if err != nil {
		return err
	}
	if err := enc.Encode(snap); err != nil {
		return err
	}

	for processed := 0; limit <= 0 || processed < limit; processed++ {
		result, err := service.ProcessNext(ctx, snap.ID)
		if err != nil {
			return err
		}
		if err := enc.Encode(result); err != nil {
			return err
		}
		if result.Chunk == nil || result.Job.Status == enums.ImportStatusComplete {
			return nil
		}
	}
	return nil
}
