package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/kairuizhang035-crypto/yinguo/internal/config"
	"github.com/kairuizhang035-crypto/yinguo/internal/fetcher"
	"github.com/kairuizhang035-crypto/yinguo/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "yinguo.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{MaxConns: cfg.Store.MaxConns})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// newLoader builds the table loader. s3:// locations need s3.endpoint.
func newLoader(c config.S3Config) (*fetcher.Loader, error) {
	if c.Endpoint == "" {
		return fetcher.NewLoader(nil), nil
	}
	blobs, err := fetcher.NewS3Blobs(fetcher.S3Options{
		Endpoint:  c.Endpoint,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Region:    c.Region,
		UseSSL:    c.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return fetcher.NewLoader(blobs), nil
}
