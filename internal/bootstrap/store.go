// Package bootstrap arma el almacenamiento según DB_DRIVER para los binarios de cmd/.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/application/stock"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/sqlite"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// Store repositorios fuera de transacción más el TxRunner del driver elegido.
type Store struct {
	TxRunner stock.TxRunner
	Items    repository.StockItemRepository
	Ledger   repository.StockTransactionRepository
	Products repository.ProductRepository
	Bins     repository.BinRepository
	close    func()
}

// Close libera pool o conexión.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStore conecta con PostgreSQL (pgxpool) o SQLite (sqlx) y, si cfg.AutoMigrate, aplica el esquema.
func OpenStore(ctx context.Context, cfg config.DBConfig, log *logger.Logger) (*Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("abrir SQLite: %w", err)
		}
		log.Info().Str("driver", cfg.Driver).Str("path", cfg.SQLitePath).Msg("almacenamiento listo")
		return &Store{
			TxRunner: sqlite.NewTxRunner(db),
			Items:    sqlite.NewStockItemRepository(db),
			Ledger:   sqlite.NewStockTransactionRepository(db),
			Products: sqlite.NewProductRepository(db),
			Bins:     sqlite.NewBinRepository(db),
			close:    func() { _ = db.Close() },
		}, nil

	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
		}
		if cfg.AutoMigrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
			log.Info().Msg("esquema PostgreSQL aplicado")
		}
		log.Info().Str("driver", cfg.Driver).Int("max_conns", cfg.MaxConns).Msg("almacenamiento listo")
		return &Store{
			TxRunner: postgres.NewTxRunner(pool),
			Items:    postgres.NewStockItemRepository(pool),
			Ledger:   postgres.NewStockTransactionRepository(pool),
			Products: postgres.NewProductRepository(pool),
			Bins:     postgres.NewBinRepository(pool),
			close:    pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("DB_DRIVER desconocido: %q", cfg.Driver)
}
