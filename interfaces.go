package main

import "context"

// InboxReader provides the current snapshot of inbox messages,
// ordered oldest to newest.
type InboxReader interface {
	FetchMessages(ctx context.Context) ([]Message, error)
}

// MessageSender delivers a text message to the configured destination.
type MessageSender interface {
	Send(text string) error
}

// StateStore persists the last-seen marker across restarts.
type StateStore interface {
	Load() (string, error)
	Save(lastID string) error
}
