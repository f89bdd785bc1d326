package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/platinummonkey/classroom/pkg/auth"
	"github.com/platinummonkey/classroom/pkg/observability"
)

// statsSource is the part of the store the gauge refresher reads
type statsSource interface {
	CountUsers(ctx context.Context) (map[auth.Role]int, error)
	CountAssignments(ctx context.Context) (int, error)
}

// statsRefresher updates the business and connection pool gauges
type statsRefresher struct {
	store   statsSource
	db      *sql.DB
	metrics *observability.Metrics
	logger  *observability.Logger
	timeout time.Duration
}

// Run refreshes the gauges once. It is scheduled by cron and never panics out.
func (s *statsRefresher) Run() {
	defer observability.RecoverPanic(s.logger, "stats refresher")

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.refresh(ctx); err != nil {
		s.logger.WithError(err).Warn("failed to refresh stats")
	}
}

func (s *statsRefresher) refresh(ctx context.Context) error {
	if s.db != nil {
		s.metrics.SetDBStats(s.db.Stats())
	}
	if s.metrics == nil {
		return nil
	}

	counts, err := s.store.CountUsers(ctx)
	if err != nil {
		return err
	}
	for role, n := range counts {
		s.metrics.UsersTotal.WithLabelValues(string(role)).Set(float64(n))
	}

	assignments, err := s.store.CountAssignments(ctx)
	if err != nil {
		return err
	}
	s.metrics.AssignmentsTotal.Set(float64(assignments))
	return nil
}
