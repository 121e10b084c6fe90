package tui

import "github.com/mmcdole/harvester/internal/domain"

// Event is one harvest update forwarded to the TUI.
// Exactly one of the pointer fields is set.
type Event struct {
	Page  *domain.PageReport
	Item  *domain.ItemTally
	Batch *domain.BatchProgress
}

// ChannelObserver adapts domain.HarvestObserver to a channel for Bubble Tea.
type ChannelObserver struct {
	ch chan<- Event
}

// NewChannelObserver creates a new channel-based observer.
func NewChannelObserver(ch chan<- Event) *ChannelObserver {
	return &ChannelObserver{ch: ch}
}

// OnPageDone sends page events, dropping them if the channel is full.
func (o *ChannelObserver) OnPageDone(report domain.PageReport) {
	select {
	case o.ch <- Event{Page: &report}:
	default: // Non-blocking if channel full
	}
}

// OnItemDone blocks so item totals stay exact.
func (o *ChannelObserver) OnItemDone(tally domain.ItemTally) {
	o.ch <- Event{Item: &tally}
}

// OnBatchDone blocks so the progress bar never skips a batch.
func (o *ChannelObserver) OnBatchDone(progress domain.BatchProgress) {
	o.ch <- Event{Batch: &progress}
}
