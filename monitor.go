package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// replayLimit caps how many messages are replayed when the stored
	// marker is no longer visible in the inbox (site-side pruning).
	replayLimit = 10

	stateSaveRetries = 3
	stateSaveDelay   = 200 * time.Millisecond
)

// errStatePersist marks a cycle that could not durably record its
// progress. Continuing past it risks duplicate forwards on restart, so
// callers should treat it as fatal.
var errStatePersist = errors.New("state persistence failed")

// CycleResult summarizes one polling cycle.
type CycleResult struct {
	SnapshotCount  int
	ForwardedCount int
	Baselined      bool
}

// selectNew returns the messages strictly after marker, oldest first.
// snapshot must be ordered oldest to newest.
//
// An empty marker means nothing has ever been forwarded; instead of
// flooding the chat with the whole backlog, the newest message id is
// returned as a baseline to persist. A non-empty marker that is absent
// from the snapshot means the site pruned history past it; at most
// replayLimit of the newest messages are replayed.
func selectNew(snapshot []Message, marker string) (toForward []Message, baseline string) {
	if len(snapshot) == 0 {
		return nil, ""
	}
	if marker == "" {
		return nil, snapshot[len(snapshot)-1].ID
	}
	for i := len(snapshot) - 1; i >= 0; i-- {
		if snapshot[i].ID == marker {
			return snapshot[i+1:], ""
		}
	}
	if len(snapshot) > replayLimit {
		snapshot = snapshot[len(snapshot)-replayLimit:]
	}
	return snapshot, ""
}

// Monitor owns one polling session: it reads inbox snapshots, forwards
// new messages and advances the persisted last-seen marker.
type Monitor struct {
	reader InboxReader
	sender MessageSender
	store  StateStore
	logger zerolog.Logger
	dryRun bool

	lastSeen string
}

// NewMonitor loads the persisted marker and returns a ready monitor.
// An unreadable state file falls back to first-run behavior, which
// baselines instead of replaying history.
func NewMonitor(reader InboxReader, sender MessageSender, store StateStore, logger zerolog.Logger, dryRun bool) *Monitor {
	lastSeen, err := store.Load()
	if err != nil {
		logger.Warn().Err(err).Msg("could not read last seen state, starting fresh")
		lastSeen = ""
	}
	return &Monitor{
		reader:   reader,
		sender:   sender,
		store:    store,
		logger:   logger,
		dryRun:   dryRun,
		lastSeen: lastSeen,
	}
}

// CheckOnce runs a single polling cycle: fetch a snapshot, select the
// messages after the marker and forward them oldest first. The marker is
// persisted after every successful send, so a failure partway through a
// batch leaves the failed message to be retried next cycle.
func (m *Monitor) CheckOnce(ctx context.Context) (CycleResult, error) {
	log := m.logger.With().Str("cycle", uuid.NewString()).Logger()

	snapshot, err := m.reader.FetchMessages(ctx)
	if err != nil {
		return CycleResult{}, fmt.Errorf("failed to fetch messages: %w", err)
	}

	res := CycleResult{SnapshotCount: len(snapshot)}
	if len(snapshot) == 0 {
		log.Debug().Msg("no messages visible")
		return res, nil
	}

	toForward, baseline := selectNew(snapshot, m.lastSeen)

	if m.dryRun {
		if baseline != "" {
			log.Info().Str("last_seen", baseline).Msg("dry run: would baseline to newest message")
		}
		for _, msg := range toForward {
			log.Info().Str("id", msg.ID).Str("service", msg.Service).Bool("otp", msg.OTP != "").Msg("dry run: would forward")
		}
		return res, nil
	}

	if baseline != "" {
		if err := m.saveMarker(baseline); err != nil {
			return res, err
		}
		res.Baselined = true
		log.Info().Str("last_seen", baseline).Msg("initial sync done, baseline set to newest message")
		return res, nil
	}

	if len(toForward) == 0 {
		log.Debug().Str("last_seen", m.lastSeen).Msg("no new messages")
		return res, nil
	}

	for _, msg := range toForward {
		if err := m.sender.Send(formatMessage(msg)); err != nil {
			return res, fmt.Errorf("failed to forward message %s: %w", msg.ID, err)
		}
		if err := m.saveMarker(msg.ID); err != nil {
			return res, err
		}
		res.ForwardedCount++
		log.Info().
			Str("id", msg.ID).
			Str("service", msg.Service).
			Bool("otp", msg.OTP != "").
			Msg("forwarded message")
	}
	return res, nil
}

// saveMarker advances the in-memory marker and persists it, retrying
// the write before giving up.
func (m *Monitor) saveMarker(id string) error {
	m.lastSeen = id
	var err error
	for attempt := 1; attempt <= stateSaveRetries; attempt++ {
		if err = m.store.Save(id); err == nil {
			return nil
		}
		m.logger.Warn().Err(err).Int("attempt", attempt).Msg("failed to save last seen state")
		if attempt < stateSaveRetries {
			time.Sleep(stateSaveDelay)
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", errStatePersist, stateSaveRetries, err)
}
