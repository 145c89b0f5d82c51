// Package servicepool builds the process-wide singleton of shared clients
// that every webhook handler, worker task, and rescrape job reads from:
// one embedding client, one vector-store client, one in-process BM25
// engine, one change-detection client, one scraper client, one Redis
// client. Built once at startup (cmd/bridgeapi/main.go) and passed down
// by reference from cmd/bridgeapi/main.go.
package servicepool

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"indexbridge/internal/bm25engine"
	"indexbridge/internal/cache"
	"indexbridge/internal/changeclient"
	"indexbridge/internal/config"
	"indexbridge/internal/embedclient"
	"indexbridge/internal/scraperclient"
	"indexbridge/internal/store"
	"indexbridge/internal/vectorclient"
)

type Pool struct {
	Embed    *embedclient.Client
	Vector   *vectorclient.Client
	BM25     *bm25engine.Engine
	Change   *changeclient.Client
	Scraper  *scraperclient.Client
	Cache    *cache.Cache
	Redis    *redis.Client
}

// New constructs every client from cfg and rebuilds the BM25 engine from
// the current contents of st's bm25_documents table.
func New(ctx context.Context, cfg *config.Config, st *store.Store) (*Pool, error) {
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	postings, err := st.ListAllBM25Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("load bm25 documents: %w", err)
	}
	bm25, err := bm25engine.New(postings)
	if err != nil {
		return nil, fmt.Errorf("build bm25 engine: %w", err)
	}

	return &Pool{
		Embed:   embedclient.New(cfg.External.EmbedURL, 0),
		Vector:  vectorclient.New(cfg.External.VectorURL, "documents", 0),
		BM25:    bm25,
		Change:  changeclient.New(cfg.External.ChangeDetectionURL, 0),
		Scraper: scraperclient.New(cfg.External.ScraperURL, 0),
		Cache:   cache.New(redisClient, cfg.Cache.ContentTTLSeconds),
		Redis:   redisClient,
	}, nil
}

func (p *Pool) Close() error {
	return p.Redis.Close()
}
