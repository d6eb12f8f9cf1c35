// Package advisory fetches the AI spam/duplicate score of a
// submission. The score is a read-only hint surfaced to reviewers; it
// never gates a transition.
package advisory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/photon-storage/go-common/log"
)

const (
	requestTimeout = 5 * time.Second
	cacheTTL       = time.Hour
)

// Score is the advisory verdict of the upstream analyzer.
type Score struct {
	SpamLikelihood      float64 `json:"spam_likelihood"`
	DuplicateLikelihood float64 `json:"duplicate_likelihood"`
	Summary             string  `json:"summary"`
}

// Cache is the read-through store in front of the analyzer. A miss is
// reported as false; read and write failures degrade to a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

type redisCache struct {
	rdb *redis.Client
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn("advisory cache read failed", "error", err)
		}
		return nil, false
	}

	return value, true
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte) {
	if err := c.rdb.Set(ctx, key, value, cacheTTL).Err(); err != nil {
		log.Warn("advisory cache write failed", "error", err)
	}
}

// Client fetches advisory scores with a read-through cache in front of
// the upstream analyzer.
type Client struct {
	endpoint string
	cache    Cache
}

// NewClient returns a new advisory client instance. rdb may be nil to
// disable caching.
func NewClient(endpoint string, rdb *redis.Client) *Client {
	var cache Cache
	if rdb != nil {
		cache = &redisCache{rdb: rdb}
	}

	return &Client{
		endpoint: endpoint,
		cache:    cache,
	}
}

// Score returns the advisory score of the submission, or nil when the
// analyzer has nothing for it. Failures degrade to a nil hint.
func (c *Client) Score(ctx context.Context, submissionID string) *Score {
	key := "advisory:" + submissionID
	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, key); ok {
			score := &Score{}
			if err := json.Unmarshal(cached, score); err == nil {
				return score
			}
		}
	}

	score, err := c.fetch(ctx, submissionID)
	if err != nil {
		log.Warn("advisory fetch failed",
			"submission", submissionID,
			"error", err,
		)
		return nil
	}

	if c.cache != nil && score != nil {
		if value, err := json.Marshal(score); err == nil {
			c.cache.Set(ctx, key, value)
		}
	}

	return score
}

func (c *Client) fetch(ctx context.Context, submissionID string) (*Score, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1/analysis?submission_id=%s", c.endpoint, submissionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyzer status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	score := &Score{}
	if err := json.Unmarshal(body, score); err != nil {
		return nil, err
	}

	return score, nil
}
