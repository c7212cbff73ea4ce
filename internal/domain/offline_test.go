package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateAudioSize(t *testing.T) {
	assert.Equal(t, int64(0), EstimateAudioSize(0))
	// One second of 16-bit mono PCM at 44.1kHz.
	assert.Equal(t, int64(88200), EstimateAudioSize(1))
	assert.Equal(t, int64(44100), EstimateAudioSize(0.5))
}

func TestManifestTotalSize(t *testing.T) {
	m := Manifest{
		"a": {ItemID: "a", SizeBytes: 100},
		"b": {ItemID: "b", SizeBytes: 250},
	}
	assert.Equal(t, int64(350), m.TotalSize())
	assert.Equal(t, int64(0), Manifest{}.TotalSize())
}

func TestOfflineItemHasAudio(t *testing.T) {
	assert.False(t, (&OfflineItem{ItemID: "a", TextRef: "pay-1"}).HasAudio())
	assert.True(t, (&OfflineItem{ItemID: "a", TextRef: "pay-1", AudioRef: "pay-2"}).HasAudio())
}
