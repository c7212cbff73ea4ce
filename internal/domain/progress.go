package domain

import "time"

// ProgressRecord is the persisted fact of how far a user has gotten in one
// content item (a chapter, meditation, or story).
type ProgressRecord struct {
	ItemID       string    `json:"item_id"`
	LastReadDate time.Time `json:"last_read_date"`
	LastPosition int64     `json:"last_position"`
	IsRead       bool      `json:"is_read"`
	ReadCount    int       `json:"read_count"`
}

// ProgressMap maps itemID to its progress record. The reconciliation service
// owns this exclusively; the metadata store and remote store each hold a
// denormalized copy.
type ProgressMap map[string]*ProgressRecord

// Clone returns a deep copy. Snapshots handed to subscribers or merged into
// remote state must never alias the live map.
func (m ProgressMap) Clone() ProgressMap {
	out := make(ProgressMap, len(m))
	for id, rec := range m {
		c := *rec
		out[id] = &c
	}
	return out
}

// Touch applies a local activity update.
// Position only advances forward (re-reading earlier pages never regresses
// the furthest point). IsRead is sticky. ReadCount increments only when the
// caller asserts a new read session.
func (r *ProgressRecord) Touch(position int64, markRead, countRead bool) {
	r.LastReadDate = time.Now()
	if position > r.LastPosition {
		r.LastPosition = position
	}
	r.IsRead = r.IsRead || markRead
	if countRead {
		r.ReadCount++
	}
}

// MergeRecords combines a local and a remote record for the same item.
//
// The newer lastReadDate wins as the base because it indicates recency of
// intent, but lastPosition, isRead, and readCount are monotonic facts that
// never regress regardless of which side's clock is newer. A timestamp-losing
// side must not erase the reader's actual furthest position or read count.
func MergeRecords(local, remote *ProgressRecord) *ProgressRecord {
	if local == nil {
		c := *remote
		return &c
	}
	if remote == nil {
		c := *local
		return &c
	}

	if !remote.LastReadDate.Before(local.LastReadDate) {
		merged := *remote
		merged.LastPosition = max(local.LastPosition, remote.LastPosition)
		merged.IsRead = local.IsRead || remote.IsRead
		merged.ReadCount = max(local.ReadCount, remote.ReadCount)
		return &merged
	}

	// Local is strictly newer; keep it as-is.
	c := *local
	return &c
}

// MergeMaps folds every remote record into a copy of the local map.
// Local-only items pass through untouched.
func MergeMaps(local, remote ProgressMap) ProgressMap {
	merged := local.Clone()
	for itemID, remoteRec := range remote {
		merged[itemID] = MergeRecords(merged[itemID], remoteRec)
	}
	return merged
}
