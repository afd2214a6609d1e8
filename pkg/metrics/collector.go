package metrics

import (
	"time"

	"github.com/lockc-project/lockc/pkg/tables"
)

// Collector periodically snapshots the kernel tables into gauges, since
// containers/processes gauges can't be updated inline from every LSM hook
// decision without adding prometheus calls to the kernel-facing hot path.
type Collector struct {
	tables tables.Tables
	stopCh chan struct{}
}

// NewCollector creates a metrics collector over the given tables.
func NewCollector(t tables.Tables) *Collector {
	return &Collector{
		tables: t,
		stopCh: make(chan struct{}),
	}
}

// Start begins periodic collection.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectContainerMetrics()
	c.collectProcessMetrics()
}

func (c *Collector) collectContainerMetrics() {
	containers, err := c.tables.ListContainers()
	if err != nil {
		return
	}

	counts := make(map[string]int)
	for _, container := range containers {
		counts[container.PolicyLevel.String()]++
	}
	// Drop levels left over from earlier snapshots that no longer have
	// any container.
	ContainersTotal.Reset()
	for level, count := range counts {
		ContainersTotal.WithLabelValues(level).Set(float64(count))
	}
}

func (c *Collector) collectProcessMetrics() {
	processes, err := c.tables.ListProcesses()
	if err != nil {
		return
	}
	ProcessesTotal.Set(float64(len(processes)))
}
