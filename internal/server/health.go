package server

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"

	"github.com/sengunthar/matrimony/internal/logger"
)

// HealthRegistrar exposes grpc.health.v1. The overall status ("") follows
// the database: SERVING while a ping succeeds.
type HealthRegistrar struct {
	db     *gorm.DB
	health *health.Server
}

func NewHealthRegistrar(database *gorm.DB) *HealthRegistrar {
	h := &HealthRegistrar{db: database, health: health.NewServer()}
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

func (h *HealthRegistrar) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.health)
}

// Probe pings the database once and updates the status. It returns the
// ping error, if any.
func (h *HealthRegistrar) Probe(ctx context.Context) error {
	err := Ping(ctx, h.db)
	status := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus("", status)
	return err
}

// Watch probes every interval until ctx ends, then marks the server as
// shutting down.
func (h *HealthRegistrar) Watch(ctx context.Context, interval time.Duration) {
	if err := h.Probe(ctx); err != nil {
		logger.Warn("health probe failed", "err", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.health.Shutdown()
			return
		case <-ticker.C:
			if err := h.Probe(ctx); err != nil {
				logger.Warn("health probe failed", "err", err)
			}
		}
	}
}

// Ping checks the database connection.
func Ping(ctx context.Context, database *gorm.DB) error {
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
