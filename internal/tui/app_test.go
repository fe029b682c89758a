package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prdeck/internal/feed"
	"prdeck/internal/filter"
	"prdeck/internal/model"
	"prdeck/internal/reserve"
)

type fakeSource struct {
	snap      *feed.Snapshot
	err       error
	calls     int
	lastLimit int
}

func (f *fakeSource) Fetch(_ context.Context, limit int) (*feed.Snapshot, error) {
	f.calls++
	f.lastLimit = limit
	return f.snap, f.err
}

type fakeReserver struct {
	result    reserve.Result
	lastStage model.Stage
	lastSpec  model.FilterSpec
	rows      []reserve.Reservation
}

func (f *fakeReserver) Reserve(_ context.Context, stage model.Stage, spec model.FilterSpec) reserve.Result {
	f.lastStage = stage
	f.lastSpec = spec
	return f.result
}

func (f *fakeReserver) Reservations(context.Context) ([]reserve.Reservation, error) {
	return f.rows, nil
}

func (f *fakeReserver) ExtendAll(context.Context) (string, error) {
	return "updated 1 rows", nil
}

type fakeStore struct {
	ids map[string]struct{}
	err error
}

func newFakeStore() *fakeStore { return &fakeStore{ids: map[string]struct{}{}} }

func (f *fakeStore) IsHidden(id string) bool {
	_, ok := f.ids[id]
	return ok
}

func (f *fakeStore) Hide(id string) error {
	if f.err != nil {
		return f.err
	}
	f.ids[id] = struct{}{}
	return nil
}

func testSnapshot() *feed.Snapshot {
	return &feed.Snapshot{
		Items: map[model.Stage][]model.Item{
			model.New: {
				{ID: "1", Title: "alpha", Labels: []string{"foo"}, Stage: model.New},
				{ID: "2", Title: "beta", Labels: []string{"bar"}, Stage: model.New},
			},
			model.NeedsMerger: {
				{ID: "3", Title: "gamma", Stage: model.NeedsMerger},
			},
		},
		Totals: map[model.Stage]int{model.New: 2, model.NeedsMerger: 1},
	}
}

func key(s string) tea.Msg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded(t *testing.T, m Model, snap *feed.Snapshot) Model {
	t.Helper()
	next, _ := m.Update(boardLoadedMsg{snap: snap})
	return next.(Model)
}

func listIDs(m Model, stage model.Stage) []string {
	var out []string
	for _, it := range m.lists[int(stage)].Items() {
		out = append(out, it.(prItem).it.ID)
	}
	return out
}

func TestBoardLoadPopulatesStageLists(t *testing.T) {
	m := New(&fakeSource{}, &fakeReserver{}, newFakeStore(), Options{Limit: 50})
	m = loaded(t, m, testSnapshot())

	assert.Equal(t, []string{"1", "2"}, listIDs(m, model.New))
	assert.Equal(t, []string{"3"}, listIDs(m, model.NeedsMerger))
	assert.Empty(t, listIDs(m, model.AwaitingChanges))
}

func TestBoardLoadAppliesHideSetAndFilter(t *testing.T) {
	store := newFakeStore()
	store.ids["2"] = struct{}{}

	m := New(&fakeSource{}, &fakeReserver{}, store, Options{
		Limit:  50,
		Filter: model.FilterSpec{Include: "foo"},
	})
	m = loaded(t, m, testSnapshot())

	assert.Equal(t, []string{"1"}, listIDs(m, model.New))
}

func TestDismissPersistsThenRemovesItem(t *testing.T) {
	store := newFakeStore()
	m := New(&fakeSource{}, &fakeReserver{}, store, Options{Limit: 50})
	m = loaded(t, m, testSnapshot())

	// Jump to the New stage and dismiss the selected item.
	next, _ := m.Update(key("2"))
	m = next.(Model)
	next, cmd := m.Update(key("x"))
	m = next.(Model)
	require.NotNil(t, cmd)

	// The command performs the durable write and reports back.
	msg := cmd()
	hiddenMsg, ok := msg.(itemHiddenMsg)
	require.True(t, ok)
	assert.True(t, store.IsHidden("1"), "id must be persisted before the UI is told")

	next, _ = m.Update(hiddenMsg)
	m = next.(Model)
	assert.Equal(t, []string{"2"}, listIDs(m, model.New))

	// The rendered state matches a fresh visibility computation.
	want := filter.Visible(testSnapshot().Items[model.New], model.FilterSpec{}, store)
	var wantIDs []string
	for _, it := range want {
		wantIDs = append(wantIDs, it.ID)
	}
	assert.Equal(t, wantIDs, listIDs(m, model.New))
}

func TestReserveFailureShowsMessageForItsStageOnly(t *testing.T) {
	rsv := &fakeReserver{result: reserve.Result{Message: "no PR available"}}
	m := New(&fakeSource{}, rsv, newFakeStore(), Options{Limit: 50})
	m = loaded(t, m, testSnapshot())

	next, _ := m.Update(key("4")) // NeedsMerger
	m = next.(Model)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.reserving[int(model.NeedsMerger)])

	next, after := m.Update(cmd())
	m = next.(Model)
	assert.Nil(t, after, "a failed reservation must not navigate anywhere")
	assert.Equal(t, "no PR available", m.status[int(model.NeedsMerger)])
	assert.Empty(t, m.status[int(model.New)])
	assert.False(t, m.reserving[int(model.NeedsMerger)])
	assert.Equal(t, model.NeedsMerger, rsv.lastStage)
}

func TestReserveSuccessNavigates(t *testing.T) {
	rsv := &fakeReserver{result: reserve.Result{URL: "https://example.com/pr/7"}}
	m := New(&fakeSource{}, rsv, newFakeStore(), Options{Limit: 50})
	m = loaded(t, m, testSnapshot())

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)

	next, open := m.Update(cmd())
	m = next.(Model)
	assert.NotNil(t, open, "success must trigger the open-URL command")
	assert.Empty(t, m.status[int(model.AwaitingChanges)])
}

func TestSecondReserveClickWhileInFlightIsIgnored(t *testing.T) {
	m := New(&fakeSource{}, &fakeReserver{}, newFakeStore(), Options{Limit: 50})
	m = loaded(t, m, testSnapshot())

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)

	_, second := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, second)
}

func TestFilterSubmitIsPureRefilter(t *testing.T) {
	src := &fakeSource{snap: testSnapshot()}
	m := New(src, &fakeReserver{}, newFakeStore(), Options{Limit: 50})
	m = loaded(t, m, testSnapshot())
	fetchesBefore := src.calls

	next, _ := m.Update(key("f"))
	m = next.(Model)
	assert.Equal(t, stateFilter, m.state)

	m.excludeInput.SetValue("bar")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)

	assert.Nil(t, cmd, "pattern changes must not hit the network")
	assert.Equal(t, fetchesBefore, src.calls)
	assert.Equal(t, stateNormal, m.state)
	assert.Equal(t, []string{"1"}, listIDs(m, model.New))
}

func TestFilterLimitChangeRefetches(t *testing.T) {
	src := &fakeSource{snap: testSnapshot()}
	m := New(src, &fakeReserver{}, newFakeStore(), Options{Limit: 50})
	m = loaded(t, m, testSnapshot())

	next, _ := m.Update(key("f"))
	m = next.(Model)
	m.limitInput.SetValue("10")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)

	require.NotNil(t, cmd)
	msg := cmd()
	_, ok := msg.(boardLoadedMsg)
	assert.True(t, ok)
	assert.Equal(t, 10, src.lastLimit)
}

func TestFilterRejectsBadLimit(t *testing.T) {
	m := New(&fakeSource{snap: testSnapshot()}, &fakeReserver{}, newFakeStore(), Options{Limit: 50})
	m = loaded(t, m, testSnapshot())

	next, _ := m.Update(key("f"))
	m = next.(Model)
	m.limitInput.SetValue("lots")
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)

	assert.Equal(t, stateFilter, m.state, "bad limit keeps the form open")
	assert.NotEmpty(t, m.inputErr)
}

func TestReservationsViewLoadsRows(t *testing.T) {
	rsv := &fakeReserver{rows: []reserve.Reservation{{ID: 42, Time: "2026-09-01 09:00:00"}}}
	m := New(&fakeSource{}, rsv, newFakeStore(), Options{Limit: 50})
	m = loaded(t, m, testSnapshot())

	next, cmd := m.Update(key("v"))
	m = next.(Model)
	assert.Equal(t, stateReservations, m.state)
	require.NotNil(t, cmd)

	next, _ = m.Update(cmd())
	m = next.(Model)
	require.Len(t, m.reservations, 1)
	assert.Equal(t, 42, m.reservations[0].ID)
}
