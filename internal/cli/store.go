package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"userbench/internal/config"
	"userbench/internal/repository"
	"userbench/internal/repository/pgxstore"
	"userbench/internal/repository/postgres"
	"userbench/internal/repository/sqlite"
)

// store bundles the repository with the pool behind it. Exactly one of db
// and pool is set.
type store struct {
	users repository.UserRepository
	db    *sql.DB
	pool  *pgxpool.Pool
}

func openStore(ctx context.Context, cfg config.Config) (*store, error) {
	timeout := cfg.Database.AcquireTimeout

	switch cfg.Database.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		return &store{users: sqlite.NewUserRepository(db, timeout), db: db}, nil

	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.Database.DSN, postgres.PoolOptions{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		return &store{users: postgres.NewUserRepository(db, timeout), db: db}, nil

	case config.DriverPGX:
		pool, err := pgxstore.Open(ctx, cfg.Database.DSN, pgxstore.PoolOptions{
			MaxConns:        int32(cfg.Database.MaxOpenConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		return &store{users: pgxstore.NewUserRepository(pool, timeout), pool: pool}, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}

// stats returns pool figures for the periodic report.
func (s *store) stats() logrus.Fields {
	if s.pool != nil {
		st := s.pool.Stat()
		return logrus.Fields{
			"acquired": st.AcquiredConns(),
			"idle":     st.IdleConns(),
			"max":      st.MaxConns(),
			"waited":   st.EmptyAcquireCount(),
		}
	}
	st := s.db.Stats()
	return logrus.Fields{
		"in_use":    st.InUse,
		"idle":      st.Idle,
		"max":       st.MaxOpenConnections,
		"wait":      st.WaitCount,
		"wait_time": st.WaitDuration.String(),
	}
}

func (s *store) Close() {
	if s.db != nil {
		s.db.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
