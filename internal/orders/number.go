package orders

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	orderNumberCounter = "order_number"
	orderNumberTTL     = 48 * time.Hour
)

type counterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	DailyCounterKey(name, scope string, day time.Time) string
}

// NumberGenerator hands out human-facing order numbers such as ORD-20260301-0007.
type NumberGenerator struct {
	counters counterStore
	prefix   string
	width    int
}

func NewNumberGenerator(counters counterStore, prefix string, width int) (*NumberGenerator, error) {
	if counters == nil {
		return nil, fmt.Errorf("counter store required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "ORD"
	}
	if width <= 0 {
		width = 4
	}
	return &NumberGenerator{counters: counters, prefix: prefix, width: width}, nil
}

// Next increments the per-day counter and formats the number for day.
func (g *NumberGenerator) Next(ctx context.Context, day time.Time) (string, error) {
	day = day.UTC()
	key := g.counters.DailyCounterKey(orderNumberCounter, g.prefix, day)
	seq, err := g.counters.IncrWithTTL(ctx, key, orderNumberTTL)
	if err != nil {
		return "", fmt.Errorf("increment order counter: %w", err)
	}
	return fmt.Sprintf("%s-%s-%0*d", g.prefix, day.Format("20060102"), g.width, seq), nil
}
