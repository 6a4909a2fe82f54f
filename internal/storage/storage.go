package storage

import "ammEngine/internal/model"

// EventSink receives accepted pool operations.
type EventSink interface {
	PutEvents(events []model.PoolEvent) error
}

// Discard drops every event.
type Discard struct{}

func (Discard) PutEvents([]model.PoolEvent) error { return nil }
