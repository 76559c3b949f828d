package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/imyme/imyme-ai/pkg/domain"
)

// StatusCounter is the slice of the task store a scrape needs.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[domain.TaskStatus]int64, error)
}

type storeCollector struct {
	store  StatusCounter
	logger *slog.Logger

	tasksDesc *prometheus.Desc
}

func newStoreCollector(store StatusCounter, logger *slog.Logger) *storeCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &storeCollector{
		store:  store,
		logger: logger,
		tasksDesc: prometheus.NewDesc(
			namespace+"_tasks",
			"Current number of task records by status.",
			[]string{"status"},
			nil,
		),
	}
}

func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tasksDesc
}

func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	if c.store == nil {
		return
	}

	// Keep store reads bounded so scrapes do not hang.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	counts, err := c.store.CountByStatus(ctx)
	if err != nil {
		c.logger.Warn("prometheus store collector failed", "err", err)
		return
	}
	for _, st := range domain.Statuses {
		m, err := prometheus.NewConstMetric(c.tasksDesc, prometheus.GaugeValue, float64(counts[st]), string(st))
		if err != nil {
			continue
		}
		ch <- m
	}
}

var registerStoreCollectorOnce sync.Once

func RegisterStoreCollector(store StatusCounter, logger *slog.Logger) {
	registerStoreCollectorOnce.Do(func() {
		prometheus.MustRegister(newStoreCollector(store, logger))
	})
}
