package manager

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// Sweep deletes expired entries from every cache and returns how many were removed
func (m *Manager) Sweep() int {
	removed := 0

	n := m.opportunities.Sweep()
	m.metrics.CacheEvicted(m.opportunities.Name(), n)
	removed += n

	n = m.enriched.Sweep()
	m.metrics.CacheEvicted(m.enriched.Name(), n)
	removed += n

	n = m.stats.Sweep()
	m.metrics.CacheEvicted(m.stats.Name(), n)
	removed += n

	if m.history != nil {
		removed += m.history.Sweep()
	}

	if removed > 0 {
		m.log.WithField("removed", removed).Debug("Swept expired cache entries")
	}
	return removed
}

// Start schedules the periodic cache sweep
func (m *Manager) Start() error {
	if m.cron != nil {
		return nil
	}
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	schedule := fmt.Sprintf("@every %s", m.sweepInterval)
	if _, err := c.AddFunc(schedule, func() { m.Sweep() }); err != nil {
		return fmt.Errorf("failed to schedule cache sweep: %w", err)
	}
	c.Start()
	m.cron = c
	m.log.WithField("schedule", schedule).Info("Cache sweep scheduled")
	return nil
}

// Stop halts the sweep schedule and waits for a running sweep to finish
func (m *Manager) Stop() {
	if m.cron == nil {
		return
	}
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.cron = nil
	m.log.Info("Cache sweep stopped")
}
