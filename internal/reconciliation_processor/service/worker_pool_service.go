package service

import (
	"log/slog"

	"github.com/panjf2000/ants/v2"
)

// WorkerPoolService bounds the per-account diffing concurrency with a
// shared ants pool.
type WorkerPoolService struct {
	pool   *ants.Pool
	logger *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolService(config WorkerPoolConfig, logger *slog.Logger) (*WorkerPoolService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolService{
		pool:   pool,
		logger: logger,
	}, nil
}

// Submit schedules a task on the pool, blocking when all workers are busy.
func (s *WorkerPoolService) Submit(task func()) error {
	return s.pool.Submit(task)
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolService) Capacity() int {
	return s.pool.Cap()
}
