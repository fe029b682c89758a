// Package reserve implements the client side of the reservation contract:
// ask the backend for one pull request from a stage and learn either the
// PR's URL or why nothing could be reserved.
package reserve

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/sync/singleflight"

	"prdeck/internal/model"
)

// NoUsableResponse is surfaced when the backend replies with an empty
// body, which it does when no PR in the stage is left to reserve.
const NoUsableResponse = "server returned no usable response"

// Result is the outcome of one reservation attempt. Exactly one of URL
// and Message is non-empty.
type Result struct {
	URL     string
	Message string
}

// OK reports whether the reservation succeeded.
func (r Result) OK() bool { return r.URL != "" }

// Client talks to the backend's reservation endpoint. The zero value is
// not usable; construct with NewClient.
type Client struct {
	base  string
	http  *http.Client
	group singleflight.Group
}

// NewClient returns a client for the triage service at base, e.g.
// "http://127.0.0.1:3000".
func NewClient(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{},
	}
}

// Reserve asks the backend to reserve one pull request from stage. The
// exclude pattern of spec is forwarded when set; the include pattern is a
// client-side concern and never transmitted. Concurrent calls for the
// same stage collapse into one request; distinct stages are independent.
// Failures are carried in the Result, never as an error: the caller shows
// the message and waits for the next click.
func (c *Client) Reserve(ctx context.Context, stage model.Stage, spec model.FilterSpec) Result {
	v, _, _ := c.group.Do(stage.Param(), func() (interface{}, error) {
		return c.reserve(ctx, stage, spec), nil
	})
	return v.(Result)
}

func (c *Client) reserve(ctx context.Context, stage model.Stage, spec model.FilterSpec) Result {
	q := url.Values{}
	q.Set("category", stage.Param())
	if spec.Exclude != "" {
		q.Set("filter", spec.Exclude)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/reserve_pr?"+q.Encode(), nil)
	if err != nil {
		return Result{Message: err.Error()}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Message: err.Error()}
	}

	text := strings.TrimSpace(string(body))
	switch {
	case strings.HasPrefix(text, "https://"):
		return Result{URL: text}
	case text != "":
		return Result{Message: text}
	default:
		return Result{Message: NoUsableResponse}
	}
}

// Reservation is one row of the backend's reservation table: a reserved
// PR id and when the reservation lapses.
type Reservation struct {
	ID   int    `json:"id"`
	Time string `json:"time"`
}

// Reservations fetches the backend's current reservation table.
func (c *Client) Reservations(ctx context.Context) ([]Reservation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/reservations", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rows []Reservation
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ExtendAll pushes every reservation's expiry out by a week and returns
// the backend's textual reply.
func (c *Client) ExtendAll(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/extend-reservations", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}
