package scheduler

import "context"

// RefresherFunc adapts a function to ContextRefresher.
type RefresherFunc func(ctx context.Context) error

func (f RefresherFunc) Refresh(ctx context.Context) error { return f(ctx) }

// RecomputerFunc adapts a function to WeightRecomputer.
type RecomputerFunc func(ctx context.Context) error

func (f RecomputerFunc) Recompute(ctx context.Context) error { return f(ctx) }

// RunnerFunc adapts a function to BackupRunner.
type RunnerFunc func(ctx context.Context) error

func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }
