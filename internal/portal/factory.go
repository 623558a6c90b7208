package portal

import (
	"context"
	"errors"
	"fmt"

	"vendorrisk/config"
	"vendorrisk/internal/storage"
)

// Result is an open portal store together with the connection it runs on.
type Result struct {
	Store Store
	// Storage is owned by Result and closed after Store.
	Storage storage.Storage
}

// Close releases the store, then its connection.
func (r *Result) Close() error {
	var errs []error
	if r.Store != nil {
		if err := r.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close portal store: %w", err))
		}
	}
	if r.Storage != nil {
		if err := r.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}

// New opens the configured database and builds the portal store on it.
func New(ctx context.Context, cfg *config.Config) (*Result, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	conn, err := storage.New(ctx, StorageConfig(cfg.Storage))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	store, err := NewStore(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &Result{Store: store, Storage: conn}, nil
}

// NewStore builds the Store matching conn's backend. The caller keeps
// ownership of conn.
func NewStore(ctx context.Context, conn storage.Storage) (Store, error) {
	if conn == nil {
		return nil, fmt.Errorf("storage is required")
	}
	switch conn.Type() {
	case storage.TypeSQLite:
		return NewSQLiteStore(conn.SQLiteDB())
	case storage.TypePostgreSQL:
		return NewPostgreSQLStore(ctx, conn.PostgreSQLPool())
	case storage.TypeMongoDB:
		return NewMongoDBStore(conn.MongoDatabase())
	default:
		return nil, fmt.Errorf("unknown storage type: %s", conn.Type())
	}
}

// StorageConfig maps the storage section of the application config onto
// storage.Config, filling unset fields from storage.DefaultConfig.
func StorageConfig(c config.StorageConfig) storage.Config {
	out := storage.DefaultConfig()
	if c.Type != "" {
		out.Type = c.Type
	}
	if c.SQLite.Path != "" {
		out.SQLite.Path = c.SQLite.Path
	}
	out.PostgreSQL.URL = c.PostgreSQL.URL
	if c.PostgreSQL.MaxConns > 0 {
		out.PostgreSQL.MaxConns = c.PostgreSQL.MaxConns
	}
	out.MongoDB.URL = c.MongoDB.URL
	if c.MongoDB.Database != "" {
		out.MongoDB.Database = c.MongoDB.Database
	}
	return out
}
