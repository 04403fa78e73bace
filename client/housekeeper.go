package client

import (
	"context"
	"time"
)

// runHousekeeper is the 50ms-period worker thread of §4.5 ("Worker
// thread"): each tick, every pooled connection is checked against two
// independent thresholds. A connection with an in-flight transaction that
// has waited longer than requestTimeout is timed out (the shorter, more
// aggressive bound — §6 Limits defaults it to 10s). A connection with no
// in-flight transaction that has simply sat idle longer than
// inactivityInterval is evicted with nothing to complete (the longer
// bound, defaulting to 60s).
func (c *Client) runHousekeeper(ctx context.Context) {
	ticker := time.NewTicker(HousekeeperPeriodMillis * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Client) sweep() {
	now := c.clock.Now()

	c.mu.Lock()
	requestTimeout := c.requestTimeout
	inactivityInterval := c.inactivityInterval
	snapshot := make(map[string]*ClientConnectionState, len(c.pool))
	for k, v := range c.pool {
		snapshot[k] = v
	}
	c.mu.Unlock()

	for key, cs := range snapshot {
		idleFor := now.Sub(cs.idleSince()).Seconds()
		cs.mu.Lock()
		tx := cs.current
		cs.mu.Unlock()

		switch {
		case tx != nil && idleFor >= requestTimeout:
			cs.mu.Lock()
			cs.current = nil
			cs.mu.Unlock()
			tx.completeWith(TxTimeout, nil)
			_ = cs.conn.Break(false)
			c.drop(key, cs)
		case tx == nil && idleFor >= inactivityInterval:
			_ = cs.conn.Break(true)
			c.drop(key, cs)
		}
	}
}
