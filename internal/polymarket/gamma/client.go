// Package gamma consumes Polymarket gamma endpoints (the event catalog).
package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/daszybak/polymarket_dashboard/pkg/httpclient"
)

// DefaultPageSize matches the dashboard's catalog paging.
const DefaultPageSize = 500

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func New(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
	}
}

// TokenIDs handles the double-encoded JSON array from the API.
type TokenIDs []string

func (t *TokenIDs) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return json.Unmarshal([]byte(s), (*[]string)(t))
}

type Market struct {
	ID           string   `json:"id"`
	ConditionID  string   `json:"conditionId"`
	Question     string   `json:"question"`
	Slug         string   `json:"slug"`
	Outcomes     string   `json:"outcomes"`
	ClobTokenIDs TokenIDs `json:"clobTokenIds"`
}

type Event struct {
	ID          string    `json:"id"`
	Ticker      string    `json:"ticker"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Slug        string    `json:"slug"`
	EndDate     string    `json:"endDate"`
	Volume      float64   `json:"volume"`
	Volume24hr  float64   `json:"volume24hr"`
	Liquidity   float64   `json:"liquidity"`
	Active      bool      `json:"active"`
	Closed      bool      `json:"closed"`
	Markets     []*Market `json:"markets"`
}

// GetEventsRaw fetches one catalog page without decoding, for pass-through
// proxying. Only open events, newest first, same ordering the dashboard shows.
func (c *Client) GetEventsRaw(ctx context.Context, limit, offset int) ([]byte, error) {
	return httpclient.GetRaw(ctx, c.httpClient, c.baseURL, eventsEndpoint(limit, offset), []int{200})
}

// GetEvents fetches one decoded catalog page.
func (c *Client) GetEvents(ctx context.Context, limit, offset int) ([]*Event, error) {
	events, err := httpclient.GetResource[[]*Event](ctx, c.httpClient, c.baseURL, eventsEndpoint(limit, offset), []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get events page at offset %d: %w", offset, err)
	}
	return events, nil
}

// GetAllEvents walks the catalog page by page until a short page.
func (c *Client) GetAllEvents(ctx context.Context) ([]*Event, error) {
	all := []*Event{}
	offset := 0
	for {
		page, err := c.GetEvents(ctx, DefaultPageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		all = append(all, page...)
		if len(page) < DefaultPageSize {
			break
		}
		offset += DefaultPageSize
	}
	return all, nil
}

func (c *Client) GetEventBySlug(ctx context.Context, slug string) (*Event, error) {
	event, err := httpclient.GetResource[*Event](ctx, c.httpClient, c.baseURL, "/events/slug/"+slug, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get event by slug %s: %w", slug, err)
	}
	return event, nil
}

func eventsEndpoint(limit, offset int) string {
	return "/events?closed=false&order=id&ascending=false&limit=" +
		strconv.Itoa(limit) + "&offset=" + strconv.Itoa(offset)
}
