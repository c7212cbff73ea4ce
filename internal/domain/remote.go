package domain

import "time"

// RemoteDocument is the envelope stored per user in the remote document
// store. DeviceID identifies which replica wrote last; the live subscription
// uses it to ignore a replica's own echoed pushes.
type RemoteDocument struct {
	DeviceID string      `json:"device_id"`
	PushedAt time.Time   `json:"pushed_at"`
	Progress ProgressMap `json:"progress"`
}
