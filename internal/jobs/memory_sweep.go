package jobs

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/jhu-collab/coursechat-api/internal/memory"
	"github.com/jhu-collab/coursechat-api/internal/services"
)

// MemorySweepJob deletes cached memory artifacts whose chat no longer
// exists. TTL expiry handles most cleanup; this catches artifacts orphaned
// by chat deletions that raced or failed their inline cleanup. Runs hourly.
type MemorySweepJob struct {
	store memory.Store
	chats *services.ChatService
}

// NewMemorySweepJob creates the job.
func NewMemorySweepJob(store memory.Store, chats *services.ChatService) *MemorySweepJob {
	return &MemorySweepJob{store: store, chats: chats}
}

// Run removes artifacts keyed to chats missing from the database.
func (j *MemorySweepJob) Run(ctx context.Context) error {
	keys, err := j.store.Keys(ctx, memory.KeyPrefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	chatIDs, err := j.chats.IDs(ctx)
	if err != nil {
		return err
	}

	var orphaned []string
	for _, key := range keys {
		chatID := chatIDFromKey(key)
		if chatID == "" {
			continue
		}
		if _, exists := chatIDs[chatID]; !exists {
			orphaned = append(orphaned, key)
		}
	}
	if len(orphaned) == 0 {
		return nil
	}

	if err := j.store.Delete(ctx, orphaned...); err != nil {
		return err
	}
	log.Printf("🗑️ [MEMORY-SWEEP] Removed %d orphaned artifacts", len(orphaned))
	return nil
}

// NextRunTime returns the top of the next hour.
func (j *MemorySweepJob) NextRunTime() time.Time {
	return time.Now().UTC().Truncate(time.Hour).Add(time.Hour)
}

// chatIDFromKey extracts the chat id from "memory:<artifact>:<chatID>".
func chatIDFromKey(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 {
		return ""
	}
	return parts[2]
}
