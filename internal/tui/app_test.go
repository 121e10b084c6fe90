package tui

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/harvester/internal/domain"
)

func TestModelAppliesEvents(t *testing.T) {
	m := NewModel(nil, nil)

	updates := []Event{
		{Page: &domain.PageReport{ItemID: "1", Page: 0, Extracted: 10, Records: 10}},
		{Page: &domain.PageReport{ItemID: "1", Page: 1, Extracted: 5, Records: 4}},
		{Page: &domain.PageReport{ItemID: "1", Page: 2, Err: fmt.Errorf("%w: 503", domain.ErrFetch)}},
		{Item: &domain.ItemTally{ItemID: "1", Expected: 20, Observed: 14, Pages: 3, Stop: domain.StopPageFailure}},
		{Item: &domain.ItemTally{ItemID: "2", Expected: 0, Observed: 0, Pages: 1}},
		{Batch: &domain.BatchProgress{Offset: 10, Total: 40, Items: 2}},
	}

	var model tea.Model = m
	for _, ev := range updates {
		model, _ = model.Update(EventMsg(ev))
	}
	got := model.(Model)

	if got.Pages != 3 || got.Records != 14 {
		t.Errorf("pages/records = %d/%d, want 3/14", got.Pages, got.Records)
	}
	if got.PageFailures != 1 || got.WriteFailures != 1 {
		t.Errorf("page/write failures = %d/%d, want 1/1", got.PageFailures, got.WriteFailures)
	}
	if got.Items != 2 || got.Discrepancies != 1 || len(got.Recent) != 1 {
		t.Errorf("items=%d discrepancies=%d recent=%d", got.Items, got.Discrepancies, len(got.Recent))
	}
	if got.Fraction() != 0.25 {
		t.Errorf("fraction = %v, want 0.25", got.Fraction())
	}

	view := got.View()
	for _, want := range []string{"expected 20, observed 14", "stop=failure", "10 / 40 items"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModelKeepsRecentBounded(t *testing.T) {
	m := NewModel(nil, nil)
	for i := 0; i < maxRecentDiscrepancies+3; i++ {
		m.apply(Event{Item: &domain.ItemTally{ItemID: fmt.Sprint(i), Expected: 1}})
	}
	if len(m.Recent) != maxRecentDiscrepancies {
		t.Fatalf("recent = %d, want %d", len(m.Recent), maxRecentDiscrepancies)
	}
	if last := m.Recent[len(m.Recent)-1].ItemID; last != fmt.Sprint(maxRecentDiscrepancies+2) {
		t.Errorf("newest = %s", last)
	}
}

func TestQuitStopsHarvest(t *testing.T) {
	stopped := false
	m := NewModel(nil, func() { stopped = true })

	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if !stopped {
		t.Error("stop not called")
	}
	if cmd != nil {
		t.Error("view should wait for the harvest to return before quitting")
	}
	if !model.(Model).Stopping {
		t.Error("model not marked stopping")
	}
}

func TestDoneQuits(t *testing.T) {
	m := NewModel(nil, nil)

	model, cmd := m.Update(DoneMsg{Err: errors.New("catalog unreachable")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("command is not tea.Quit")
	}

	got := model.(Model)
	if !got.Done || got.Err == nil {
		t.Errorf("done=%v err=%v", got.Done, got.Err)
	}
	if !strings.Contains(got.View(), "catalog unreachable") {
		t.Error("view does not show the error")
	}
}

func TestWaitForEventClosedChannel(t *testing.T) {
	ch := make(chan Event, 1)
	ch <- Event{Batch: &domain.BatchProgress{Offset: 5}}
	close(ch)

	if msg, ok := waitForEvent(ch)().(EventMsg); !ok || msg.Batch.Offset != 5 {
		t.Errorf("first read = %#v", msg)
	}
	if msg := waitForEvent(ch)(); msg != nil {
		t.Errorf("closed channel produced %#v", msg)
	}
}

func TestChannelObserverDropsPagesWhenFull(t *testing.T) {
	ch := make(chan Event, 1)
	obs := NewChannelObserver(ch)

	obs.OnPageDone(domain.PageReport{Page: 0})
	obs.OnPageDone(domain.PageReport{Page: 1}) // Dropped

	ev := <-ch
	if ev.Page == nil || ev.Page.Page != 0 {
		t.Fatalf("event = %+v", ev)
	}

	obs.OnBatchDone(domain.BatchProgress{Offset: 10})
	if ev := <-ch; ev.Batch == nil || ev.Batch.Offset != 10 {
		t.Errorf("batch event = %+v", ev)
	}
}
