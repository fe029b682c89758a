// Package feed supplies the board contents: for every pipeline stage, the
// ordered pull request list the backend currently holds. The dashboard
// renders whatever the source returns and never fabricates items.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"prdeck/internal/model"
)

// Snapshot is one refresh of the board. Items carries the per-stage lists
// in backend order; Totals carries the backend's full per-stage counts,
// which exceed len(Items[stage]) when the result limit truncates a list.
type Snapshot struct {
	Items  map[model.Stage][]model.Item
	Totals map[model.Stage]int
}

// Source fetches a Snapshot. limit caps the number of items per stage and
// is interpreted by the backend, not locally.
type Source interface {
	Fetch(ctx context.Context, limit int) (*Snapshot, error)
}

// HTTPSource reads the item feed from the triage service's JSON endpoint.
type HTTPSource struct {
	base string
	http *http.Client
}

// NewHTTPSource returns a source for the triage service at base.
func NewHTTPSource(base string) *HTTPSource {
	return &HTTPSource{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{},
	}
}

// wireItem mirrors one pull request in the feed's JSON output.
type wireItem struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
	URL    string   `json:"url"`
}

// wirePage is one stage's feed response.
type wirePage struct {
	Total int        `json:"total"`
	Items []wireItem `json:"items"`
}

// Fetch pulls all stages concurrently and assembles a Snapshot. Any
// stage's failure fails the whole refresh.
func (s *HTTPSource) Fetch(ctx context.Context, limit int) (*Snapshot, error) {
	snap := &Snapshot{
		Items:  map[model.Stage][]model.Item{},
		Totals: map[model.Stage]int{},
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	errs := make(chan error, len(model.Stages))

	for _, stage := range model.Stages {
		wg.Add(1)
		go func(stage model.Stage) {
			defer wg.Done()

			page, err := s.fetchStage(ctx, stage, limit)
			if err != nil {
				errs <- fmt.Errorf("fetch %s: %w", stage.Param(), err)
				return
			}

			items := make([]model.Item, 0, len(page.Items))
			for _, w := range page.Items {
				labels := append([]string(nil), w.Labels...)
				model.SortLabels(labels)
				items = append(items, model.Item{
					ID:     w.ID,
					Title:  w.Title,
					Labels: labels,
					URL:    w.URL,
					Stage:  stage,
				})
			}

			mu.Lock()
			snap.Items[stage] = items
			snap.Totals[stage] = page.Total
			mu.Unlock()
		}(stage)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		return nil, err
	}
	return snap, nil
}

func (s *HTTPSource) fetchStage(ctx context.Context, stage model.Stage, limit int) (*wirePage, error) {
	q := url.Values{}
	q.Set("category", stage.Param())
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/pulls?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var page wirePage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return &page, nil
}
