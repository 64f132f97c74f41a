package testutil

import (
	"context"
	"sync"

	"github.com/tphakala/cropguard/internal/detection"
)

// MemCounter is an in-memory counter store. Increments are atomic with
// respect to each other, like the SQL UPDATE they stand in for.
type MemCounter struct {
	mu      sync.Mutex
	counts  detection.Snapshot
	incErr  error
	readErr error
}

// NewMemCounter returns a MemCounter with all four rows present.
func NewMemCounter() *MemCounter {
	c := &MemCounter{counts: make(detection.Snapshot)}
	for _, o := range detection.Outcomes() {
		c.counts[o] = make(map[detection.Category]int64)
	}
	return c
}

// FailIncrements makes Increment return err; nil restores success.
func (c *MemCounter) FailIncrements(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incErr = err
}

// FailReads makes Row and Snapshot return err; nil restores success.
func (c *MemCounter) FailReads(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
}

func (c *MemCounter) Increment(_ context.Context, o detection.Outcome, cat detection.Category) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.incErr != nil {
		return c.incErr
	}
	c.counts[o][cat]++
	return nil
}

// Set overwrites one cell.
func (c *MemCounter) Set(o detection.Outcome, cat detection.Category, v int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[o][cat] = v
}

func (c *MemCounter) Row(_ context.Context, o detection.Outcome) (map[detection.Category]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return nil, c.readErr
	}
	row := make(map[detection.Category]int64, len(detection.Categories()))
	for _, cat := range detection.Categories() {
		row[cat] = c.counts[o][cat]
	}
	return row, nil
}

func (c *MemCounter) Snapshot(ctx context.Context) (detection.Snapshot, error) {
	snap := make(detection.Snapshot)
	for _, o := range detection.Outcomes() {
		row, err := c.Row(ctx, o)
		if err != nil {
			return nil, err
		}
		snap[o] = row
	}
	return snap, nil
}

// Get returns one cell.
func (c *MemCounter) Get(o detection.Outcome, cat detection.Category) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[o][cat]
}

// TerminalTotal sums Correct, Incorrect and None over all categories.
func (c *MemCounter) TerminalTotal() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for o, row := range c.counts {
		if !o.Terminal() {
			continue
		}
		for _, v := range row {
			n += v
		}
	}
	return n
}
