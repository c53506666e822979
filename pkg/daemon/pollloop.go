package daemon

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/modoterra/hookscope/pkg/core"
	"github.com/modoterra/hookscope/pkg/transport/uds"
)

// PollLoop rescans the log directory every interval and broadcasts a
// dates.delta event when day files appear, change or disappear.
type PollLoop struct {
	daemon   *Daemon
	interval time.Duration
	logger   *slog.Logger
}

// NewPollLoop creates a poll loop for the given daemon.
func NewPollLoop(d *Daemon, interval time.Duration, logger *slog.Logger) *PollLoop {
	if logger == nil {
		logger = d.logger
	}
	return &PollLoop{daemon: d, interval: interval, logger: logger}
}

// Run starts the poll loop. Blocks until ctx is cancelled.
func (pl *PollLoop) Run(ctx context.Context) {
	// Seed the snapshot so the first tick only reports real changes.
	pl.scan()

	ticker := time.NewTicker(pl.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pl.tick()
		}
	}
}

func (pl *PollLoop) tick() {
	delta, ok := pl.scan()
	if !ok || !delta.HasChanges() {
		return
	}
	pl.logger.Debug("day files changed",
		"added", len(delta.Added), "updated", len(delta.Updated), "removed", len(delta.Removed))
	evt, err := uds.NewEvent(uds.EventDatesDelta, delta)
	if err != nil {
		pl.logger.Error("encode dates delta", "err", err)
		return
	}
	pl.daemon.Server().Broadcast(evt)
}

// scan swaps in the current directory listing and returns what changed.
func (pl *PollLoop) scan() (uds.DatesDelta, bool) {
	files, err := pl.daemon.dir.Files()
	if err != nil {
		pl.logger.Error("scan log directory", "dir", pl.daemon.dir.Root, "err", err)
		return uds.DatesDelta{}, false
	}
	next := make(map[string]core.DayFile, len(files))
	for _, f := range files {
		next[f.Date] = f
	}

	pl.daemon.mu.Lock()
	prev := pl.daemon.files
	pl.daemon.files = next
	pl.daemon.mu.Unlock()

	return computeDelta(prev, next), true
}

func computeDelta(old, new map[string]core.DayFile) uds.DatesDelta {
	var d uds.DatesDelta

	for date, f := range new {
		prev, existed := old[date]
		if !existed {
			d.Added = append(d.Added, f)
		} else if fileChanged(prev, f) {
			d.Updated = append(d.Updated, f)
		}
	}

	for date := range old {
		if _, exists := new[date]; !exists {
			d.Removed = append(d.Removed, date)
		}
	}

	newestFirst := func(files []core.DayFile) {
		sort.Slice(files, func(i, j int) bool { return files[i].Date > files[j].Date })
	}
	newestFirst(d.Added)
	newestFirst(d.Updated)
	sort.Sort(sort.Reverse(sort.StringSlice(d.Removed)))
	return d
}

func fileChanged(a, b core.DayFile) bool {
	return a.Size != b.Size || !a.ModTime.Equal(b.ModTime)
}
