package models

import "time"

// SyncOperation is the kind of a queued remote write.
type SyncOperation string

const (
	OperationCreate SyncOperation = "create"
	OperationUpdate SyncOperation = "update"
	OperationDelete SyncOperation = "delete"
)

// SyncQueueEntry is one pending remote write. Payload is a snapshot taken at
// enqueue time and is already encrypted when a key was available.
type SyncQueueEntry struct {
	ID         string        `json:"id"`
	Operation  SyncOperation `json:"operation"`
	Collection Collection    `json:"collection"`
	Payload    Document      `json:"payload"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// LocalID returns the local id carried in the payload in textual form.
func (e SyncQueueEntry) LocalID() string {
	return LocalIDString(e.Payload[FieldID])
}
