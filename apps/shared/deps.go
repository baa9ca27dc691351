// Package shared sets up what the api and admin apps have in common: logging, storage and services.
package shared

import (
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/cgbcreil/gestio/core"
	"github.com/cgbcreil/gestio/core/activity"
	"github.com/cgbcreil/gestio/core/budget"
	"github.com/cgbcreil/gestio/core/indicator"
	"github.com/cgbcreil/gestio/core/objective"
	logsvc "github.com/cgbcreil/gestio/services/logger"
	"github.com/cgbcreil/gestio/storage/database"
	inmemdb "github.com/cgbcreil/gestio/storage/database/inmem"
	sqlxrepos "github.com/cgbcreil/gestio/storage/database/sqlx"
)

type (
	Store struct {
		SQL        *sql.DB // nil with the memory engine
		Tx         core.Transactor
		Budget     budget.Repository
		Activity   activity.Repository
		Indicators indicator.Repository
		Objectives objective.Repository
		close      func() error
	}

	Services struct {
		Budget     *budget.Service
		Activity   *activity.Service
		Indicators *indicator.Service
		Objectives *objective.Service
	}
)

// NewLogger returns the zap logger, wrapped by the rollbar logger when a token is configured.
func NewLogger(conf *core.Config, name string) (core.Logger, error) {
	local, err := logsvc.NewZapLogger(conf, strings.ToLower(name))
	if err != nil {
		return nil, errors.Wrap(err, "building zap logger")
	}
	if conf.RollbarToken == "" {
		return local, nil
	}
	logger := logsvc.NewRollbarLogger(conf, local)
	logger.Enable(!conf.Debug)
	return logger, nil
}

// OpenStore opens the repositories of the configured engine.
// The postgres engines create the database if needed, and apply pending migrations when `migrate` is set.
func OpenStore(conf *core.Config, migrate bool) (*Store, error) {
	switch conf.Database.Engine {
	case database.EngineMemory:
		db := inmemdb.NewDB()
		return &Store{
			Tx:         db,
			Budget:     inmemdb.NewBudgetRepository(db),
			Activity:   inmemdb.NewActivityRepository(db),
			Indicators: inmemdb.NewIndicatorRepository(db),
			Objectives: inmemdb.NewObjectiveRepository(db),
			close:      func() error { return nil },
		}, nil

	case database.EnginePostgres, database.EnginePgx:
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}
		sqlDB, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err = database.Migrate(sqlDB.DB); err != nil {
				_ = sqlDB.Close()
				return nil, err
			}
		}
		db := sqlxrepos.NewDB(sqlDB)
		return &Store{
			SQL:        sqlDB.DB,
			Tx:         db,
			Budget:     sqlxrepos.NewBudgetRepository(db),
			Activity:   sqlxrepos.NewActivityRepository(db),
			Indicators: sqlxrepos.NewIndicatorRepository(db),
			Objectives: sqlxrepos.NewObjectiveRepository(db),
			close:      sqlDB.Close,
		}, nil

	default:
		return nil, errors.Errorf("unsupported database engine %q", conf.Database.Engine)
	}
}

func (s *Store) Close() error {
	return s.close()
}

func NewServices(conf *core.Config, store *Store) *Services {
	budgetSvc := budget.NewService(store.Budget, store.Tx)
	activitySvc := activity.NewService(store.Activity, store.Tx, activity.Options{
		AgeBrackets:               conf.Activity.AgeBrackets,
		FrequencyBuckets:          conf.Activity.FrequencyBuckets,
		MatrixDefaultSessions:     conf.Activity.MatrixDefaultSessions,
		MatrixDefaultParticipants: conf.Activity.MatrixDefaultParticipants,
	})
	return &Services{
		Budget:     budgetSvc,
		Activity:   activitySvc,
		Indicators: indicator.NewService(store.Indicators, store.Tx, budgetSvc, activitySvc),
		Objectives: objective.NewService(store.Objectives, store.Tx, budgetSvc),
	}
}
