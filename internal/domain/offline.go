package domain

import "time"

// Audio payload size is estimated from duration because the exact encoded
// size is not always cheaply knowable up front. 44.1kHz mono at 16 bits.
const (
	AudioSampleRate     = 44100
	AudioBytesPerSample = 2
)

// EstimateAudioSize converts a narration duration into an approximate byte
// count for budget accounting.
func EstimateAudioSize(durationSeconds float64) int64 {
	if durationSeconds <= 0 {
		return 0
	}
	return int64(durationSeconds * AudioSampleRate * AudioBytesPerSample)
}

// ContentDescriptor identifies a downloadable content item. Produced by the
// content-loading collaborator, consumed by the download manager.
type ContentDescriptor struct {
	ItemID      string `json:"item_id" validate:"required"`
	Title       string `json:"title" validate:"required"`
	TextContent string `json:"text_content"`
	// TextURL is fetched when TextContent is not supplied inline.
	TextURL string `json:"text_url,omitempty"`
	// AudioURLHint is the convention-based location of the narration audio.
	// Absence of audio at this location is not an error.
	AudioURLHint string `json:"audio_url_hint,omitempty"`
}

// OfflineItem is the manifest entry for one fully downloaded content item.
// An entry exists if and only if its payload refs resolve in the byte store;
// it is written only after all payload writes succeed.
type OfflineItem struct {
	ItemID               string    `json:"item_id"`
	Title                string    `json:"title"`
	TextRef              string    `json:"text_ref"`
	AudioRef             string    `json:"audio_ref,omitempty"`
	AudioDurationSeconds float64   `json:"audio_duration_seconds,omitempty"`
	DownloadedAt         time.Time `json:"downloaded_at"`
	SizeBytes            int64     `json:"size_bytes"`
}

// HasAudio reports whether the item carries a narration payload.
func (i *OfflineItem) HasAudio() bool {
	return i.AudioRef != ""
}

// Manifest is the directory of downloaded items, keyed by itemID.
// Persisted as a single JSON document in the metadata store.
type Manifest map[string]*OfflineItem

// Clone returns a deep copy of the manifest.
func (m Manifest) Clone() Manifest {
	out := make(Manifest, len(m))
	for id, item := range m {
		c := *item
		out[id] = &c
	}
	return out
}

// TotalSize sums the recorded size of every downloaded item.
func (m Manifest) TotalSize() int64 {
	var total int64
	for _, item := range m {
		total += item.SizeBytes
	}
	return total
}

// JobStatus is the lifecycle state of an in-flight download.
type JobStatus string

// Download job states. Jobs are ephemeral: a job leaves the in-flight table
// when it reaches completed or error.
const (
	JobDownloading JobStatus = "downloading"
	JobCompleted   JobStatus = "completed"
	JobError       JobStatus = "error"
)

// DownloadJob tracks one in-flight download. Never persisted.
type DownloadJob struct {
	ItemID          string    `json:"item_id"`
	ProgressPercent int       `json:"progress_percent"`
	Status          JobStatus `json:"status"`
	ErrorMessage    string    `json:"error_message,omitempty"`
}

// DownloadResult is the terminal outcome of a download request.
// Errors are carried as values, never panics or returned errors: downloads
// are user-initiated background actions the UI must display gracefully.
type DownloadResult struct {
	ItemID       string    `json:"item_id"`
	Status       JobStatus `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// ManagerStatus is the snapshot delivered to download manager subscribers.
type ManagerStatus struct {
	IsOnline        bool          `json:"is_online"`
	CanDownloadMore bool          `json:"can_download_more"`
	BytesUsed       int64         `json:"bytes_used"`
	BytesAvailable  int64         `json:"bytes_available"`
	DownloadedIDs   []string      `json:"downloaded_ids"`
	InFlight        []DownloadJob `json:"in_flight"`
}
