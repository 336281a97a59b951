package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yourorg/yield-risk-core/internal/fetch"
	"github.com/yourorg/yield-risk-core/internal/model"
	"github.com/yourorg/yield-risk-core/internal/otel"
)

type listResult struct {
	list []model.Opportunity
	err  error
}

// collect lists every adapter concurrently and waits for all of them. Failed adapters
// contribute no entry. The second value counts adapters that answered without error.
func (m *Manager) collect(ctx context.Context) (map[string][]model.Opportunity, int) {
	ctx, span := otel.StartSpan(ctx, "manager.collect", attribute.Int("adapters", len(m.adapters)))
	defer span.End()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		results   = make(map[string][]model.Opportunity, len(m.adapters))
		succeeded int
	)

	for _, adapter := range m.adapters {
		wg.Add(1)
		go func(a fetch.Adapter) {
			defer wg.Done()

			name := a.ProtocolInfo().Name
			list, err := m.listAdapter(ctx, a)
			m.recordList(a, list, err)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				return
			}
			results[name] = list
			succeeded++
		}(adapter)
	}

	wg.Wait()
	span.SetAttributes(attribute.Int("succeeded", succeeded))
	return results, succeeded
}

// listAdapter calls one adapter behind its breaker and timeout. Panics become errors.
func (m *Manager) listAdapter(ctx context.Context, a fetch.Adapter) ([]model.Opportunity, error) {
	name := a.ProtocolInfo().Name
	breaker := m.breakers[name]
	if err := breaker.Allow(); err != nil {
		m.metrics.ObserveAdapter(name, "open", 0)
		m.log.WithField("protocol", name).WithError(breaker.LastError()).Debug("Skipping adapter, circuit open")
		return nil, err
	}

	ctx, span := otel.StartSpan(ctx, "adapter.list", attribute.String("protocol", name))
	defer span.End()

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, m.adapterTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan listResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- listResult{err: fmt.Errorf("%w: adapter panic: %v", model.ErrUpstreamUnavailable, r)}
			}
		}()
		list, err := a.List(ctx)
		done <- listResult{list: list, err: err}
	}()

	var res listResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res = listResult{err: fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, ctx.Err())}
	}
	elapsed := time.Since(start)

	log := m.log.WithFields(logrus.Fields{"protocol": name, "duration": elapsed})
	if res.err != nil && parent.Err() != nil {
		// the caller went away; that says nothing about the upstream
		m.metrics.ObserveAdapter(name, "cancelled", elapsed)
		log.WithError(res.err).Debug("Adapter call abandoned by caller")
		return nil, res.err
	}
	if res.err != nil {
		breaker.RecordFailure(res.err)
		otel.RecordError(ctx, res.err)
		status := "error"
		if errors.Is(res.err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			status = "timeout"
		}
		m.metrics.ObserveAdapter(name, status, elapsed)
		log.WithError(res.err).Warn("Adapter failed, contributing empty result")
		return nil, res.err
	}

	breaker.RecordSuccess()
	m.metrics.ObserveAdapter(name, "ok", elapsed)
	log.WithField("count", len(res.list)).Debug("Adapter listed opportunities")
	if res.list == nil {
		res.list = []model.Opportunity{}
	}
	return res.list, nil
}

// recordList keeps the health counters and the protocol routing table current
func (m *Manager) recordList(a fetch.Adapter, list []model.Opportunity, err error) {
	name := a.ProtocolInfo().Name

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.lastCounts[name] = 0
		return
	}
	m.lastCounts[name] = len(list)
	for _, o := range list {
		if slug, _, _, perr := fetch.ParseID(o.ID); perr == nil {
			m.routes[slug] = a
		}
	}
}
