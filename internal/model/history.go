package model

// HistoryAction names the lifecycle event recorded by a HistoryEntry.
type HistoryAction string

const (
	ActionCreate  HistoryAction = "create"
	ActionReserve HistoryAction = "reserve"
	ActionCancel  HistoryAction = "cancel"
	ActionDelete  HistoryAction = "delete"
)

// SystemUserID is recorded as the actor of admin-initiated lifecycle events.
const SystemUserID = "system"

// HistoryEntry is an immutable audit record.  ConcertName is snapshotted
// when the event happens and survives later deletion of the concert.
type HistoryEntry struct {
	ID          string        `json:"id"`
	Timestamp   Timestamp     `json:"timestamp"`
	UserID      string        `json:"userId"`
	ConcertID   string        `json:"concertId"`
	ConcertName string        `json:"concertName"`
	Action      HistoryAction `json:"action"`
}
