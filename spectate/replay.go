package spectate

import (
	"context"
	"errors"
	"time"
)

// Replay broadcasts frames one per interval. With loop set it starts over
// after the last frame until ctx is done; otherwise it returns nil once every
// frame has been sent.
func Replay(ctx context.Context, hub *Hub, frames []Frame, interval time.Duration, loop bool) error {
	if len(frames) == 0 {
		return errors.New("replay: no frames")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, f := range frames {
			if err := hub.Broadcast(ctx, f); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
		if !loop {
			return nil
		}
	}
}
