package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// executePipe runs the queued pipeline commands and surfaces the first
// command that failed, naming it for the log.
func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	cmds, err := pipe.Exec(ctx)
	if err == nil {
		return nil
	}

	for _, cmd := range cmds {
		if cmdErr := cmd.Err(); cmdErr != nil {
			return fmt.Errorf("%s: %w", cmd.Name(), cmdErr)
		}
	}

	return err
}
