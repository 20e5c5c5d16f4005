package monitoring

import (
	"encoding/json"
	"sync"
	"time"
)

// A ProgressBar tracks how many frames of a batch have been played.
type ProgressBar struct {
	mu sync.Mutex

	ID        string
	Name      string
	StartTime time.Time
	Total     uint64
	Finished  uint64
}

type progressRsp struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
	Fraction  float64   `json:"fraction"`
}

// Advance marks a number of frames as played. The count never exceeds the
// total.
func (b *ProgressBar) Advance(frames uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Finished += frames
	if b.Finished > b.Total {
		b.Finished = b.Total
	}
}

// Fraction returns the share of frames already played, 1 for an empty batch.
func (b *ProgressBar) Fraction() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.fraction()
}

func (b *ProgressBar) fraction() float64 {
	if b.Total == 0 {
		return 1
	}

	return float64(b.Finished) / float64(b.Total)
}

// MarshalJSON reports a consistent view of the bar.
func (b *ProgressBar) MarshalJSON() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return json.Marshal(progressRsp{
		ID:        b.ID,
		Name:      b.Name,
		StartTime: b.StartTime,
		Total:     b.Total,
		Finished:  b.Finished,
		Fraction:  b.fraction(),
	})
}
