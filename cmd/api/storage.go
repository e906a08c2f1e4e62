package main

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/zyra-ai/zyra/internal/api/handlers"
	"github.com/zyra-ai/zyra/internal/execution/history"
	"github.com/zyra-ai/zyra/internal/pkg/config"
	"github.com/zyra-ai/zyra/internal/pkg/database"
	"github.com/zyra-ai/zyra/internal/scheduler/store"
)

// storage bundles the schedule and history stores of one driver.
type storage struct {
	schedules store.ScheduleStore
	history   history.Store
	// db is nil for the file driver.
	db    *sql.DB
	close func() error
}

func (s *storage) pinger() handlers.Pinger {
	if s.db == nil {
		return nil
	}
	return s.db
}

func openStorage(cfg *config.Config) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverFile:
		schedules, err := store.NewFileStore(cfg.Scheduler.SchedulesFile)
		if err != nil {
			return nil, err
		}
		hist, err := history.NewFileStore(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		return &storage{
			schedules: schedules,
			history:   hist,
			close:     func() error { return nil },
		}, nil

	case config.DriverSQLite:
		db, err := database.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.Storage.SQLitePath).Msg("SQLite storage opened")
		return &storage{
			schedules: store.NewSQLiteStore(db),
			history:   history.NewSQLiteStore(db),
			db:        db,
			close:     db.Close,
		}, nil

	case config.DriverPostgres:
		gormDB, err := database.NewGormDB(&cfg.Database, cfg.App.Debug)
		if err != nil {
			return nil, err
		}
		if err := database.AutoMigrate(gormDB); err != nil {
			return nil, err
		}
		db, err := gormDB.DB()
		if err != nil {
			return nil, err
		}
		return &storage{
			schedules: store.NewPostgresStore(gormDB),
			history:   history.NewGormStore(gormDB),
			db:        db,
			close:     db.Close,
		}, nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
