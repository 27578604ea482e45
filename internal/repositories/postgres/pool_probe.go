package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/mocktest-service/internal/repositories"
	"gorm.io/gorm"
)

// DefaultPoolCapacity applies when the pool has no MaxOpenConns limit
const DefaultPoolCapacity = 10

type PoolProbe struct {
	db       *gorm.DB
	capacity int
}

// NewPoolProbe measures utilization against capacity, or against the pool's
// configured maximum when capacity is zero.
func NewPoolProbe(db *gorm.DB, capacity int) *PoolProbe {
	return &PoolProbe{db: db, capacity: capacity}
}

func (p *PoolProbe) GetPoolMetrics(ctx context.Context) (repositories.PoolMetrics, error) {
	sqlDB, err := p.db.DB()
	if err != nil {
		return repositories.PoolMetrics{}, fmt.Errorf("failed to get sql db: %w", err)
	}

	stats := sqlDB.Stats()

	total := p.capacity
	if total <= 0 {
		total = stats.MaxOpenConnections
	}
	if total <= 0 {
		total = DefaultPoolCapacity
	}

	return repositories.PoolMetrics{
		Active:             stats.InUse,
		Idle:               stats.Idle,
		Total:              total,
		UtilizationPercent: float64(stats.InUse) / float64(total) * 100,
	}, nil
}
