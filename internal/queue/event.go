// Package queue defines the history events exchanged over RabbitMQ and the
// consumer that turns them into an append-only log file.
package queue

import "github.com/iliyamo/concert-reservation/internal/model"

// HistoryRecordedEvent is published once for every committed ledger
// mutation.  It carries the full history entry so consumers never need to
// query the service.
type HistoryRecordedEvent struct {
	ID          string              `json:"id"`
	Timestamp   model.Timestamp     `json:"timestamp"`
	UserID      string              `json:"userId"`
	ConcertID   string              `json:"concertId"`
	ConcertName string              `json:"concertName"`
	Action      model.HistoryAction `json:"action"`
}

// NewHistoryRecordedEvent converts a ledger history entry.
func NewHistoryRecordedEvent(e model.HistoryEntry) HistoryRecordedEvent {
	return HistoryRecordedEvent(e)
}
