package redis

import (
	"context"
	"fmt"
	"time"
)

// Date folders recur daily; keys expire once a folder can no longer come up
// again in a scan.
const processedKeyTTL = 14 * 24 * time.Hour

// ProcessedRepo implements storage.ProcessedFileRepository on Redis sets,
// one set per date folder.
type ProcessedRepo struct {
	client *Client
}

// NewProcessedRepo creates the repository.
func NewProcessedRepo(client *Client) *ProcessedRepo {
	return &ProcessedRepo{client: client}
}

func processedKey(dateFolder string) string {
	return fmt.Sprintf("processed_files:%s", dateFolder)
}

// IsProcessed reports whether filename was already handled for dateFolder.
func (r *ProcessedRepo) IsProcessed(ctx context.Context, dateFolder, filename string) (bool, error) {
	ok, err := r.client.rdb.SIsMember(ctx, processedKey(dateFolder), filename).Result()
	if err != nil {
		return false, fmt.Errorf("sismember failed: %w", err)
	}
	return ok, nil
}

// MarkProcessed records filename as handled for dateFolder.
func (r *ProcessedRepo) MarkProcessed(ctx context.Context, dateFolder, filename string) error {
	key := processedKey(dateFolder)
	if err := r.client.rdb.SAdd(ctx, key, filename).Err(); err != nil {
		return fmt.Errorf("sadd failed: %w", err)
	}
	if err := r.client.rdb.Expire(ctx, key, processedKeyTTL).Err(); err != nil {
		return fmt.Errorf("expire failed: %w", err)
	}
	return nil
}
