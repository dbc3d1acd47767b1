package queue

import (
	"github.com/hibiken/asynq"
	"github.com/meridianlaw/caseflow/pkg/config"
)

// Queue names. Password reset emails run on critical so a user waiting
// on a reset link is not stuck behind reminder digests.
const (
	Critical = "critical"
	Default  = "default"
	Low      = "low"
)

func NewClient(cfg *config.RedisConfig) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
	})
}

func NewServer(cfg *config.RedisConfig, concurrency int) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 10
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Addr(),
			Password: cfg.Password,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				Critical: 6,
				Default:  3,
				Low:      1,
			},
		},
	)
}
