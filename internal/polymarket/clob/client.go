// Package clob is used to call clob polymarket endpoints.
package clob

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/daszybak/polymarket_dashboard/internal/price"
	"github.com/daszybak/polymarket_dashboard/pkg/httpclient"
)

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

// BookLevel is one resting price level in a book snapshot.
type BookLevel struct {
	Price price.Price `json:"price"`
	Size  price.Size  `json:"size"`
}

// Book is the full resting order book for one token.
type Book struct {
	Market    string      `json:"market"`
	AssetID   string      `json:"asset_id"`
	Timestamp string      `json:"timestamp"`
	Hash      string      `json:"hash"`
	Bids      []BookLevel `json:"bids"`
	Asks      []BookLevel `json:"asks"`
}

// GetBook fetches the current book snapshot for a token. Any non-200 status
// or network failure is an error; the caller keeps whatever book it had.
func (c *Client) GetBook(ctx context.Context, tokenID string) (*Book, error) {
	endpoint := "/book?token_id=" + url.QueryEscape(tokenID)
	book, err := httpclient.GetResource[*Book](ctx, c.httpClient, c.baseURL, endpoint, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get book for token %s: %w", tokenID, err)
	}
	return book, nil
}

// GetBookRaw fetches the book snapshot body without decoding it, for
// pass-through proxying. A non-200 upstream status comes back as a
// *httpclient.StatusError so the proxy can forward it.
func (c *Client) GetBookRaw(ctx context.Context, tokenID string) ([]byte, error) {
	endpoint := "/book?token_id=" + url.QueryEscape(tokenID)
	return httpclient.GetRaw(ctx, c.httpClient, c.baseURL, endpoint, []int{200})
}

// UpstreamStatus extracts the upstream HTTP status from an error, if any.
func UpstreamStatus(err error) (int, bool) {
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	return 0, false
}

type MarketToken struct {
	Outcome string      `json:"outcome"`
	Price   price.Price `json:"price"`
	TokenID string      `json:"token_id"`
	Winner  bool        `json:"winner"`
}

type Market struct {
	ConditionID string        `json:"condition_id"`
	Description string        `json:"description"`
	Question    string        `json:"question"`
	Tokens      []MarketToken `json:"tokens"`
}

type MarketPage struct {
	Limit      int       `json:"limit"`
	Count      int       `json:"count"`
	Data       []*Market `json:"data"`
	NextCursor *string   `json:"next_cursor,omitempty"`
}

func (c *Client) GetMarketByConditionID(ctx context.Context, conditionID string) (*Market, error) {
	market, err := httpclient.GetResource[*Market](ctx, c.httpClient, c.baseURL, "/markets/"+conditionID, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get market by condition ID %s: %w", conditionID, err)
	}
	return market, nil
}

func (c *Client) GetMarkets(ctx context.Context, nextCursor *string) (*MarketPage, error) {
	endpoint := "/markets"
	if nextCursor != nil {
		endpoint += "?next_cursor=" + url.QueryEscape(*nextCursor)
	}
	markets, err := httpclient.GetResource[*MarketPage](ctx, c.httpClient, c.baseURL, endpoint, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't get markets from next cursor: %w", err)
	}
	return markets, nil
}

func (c *Client) GetAllMarkets(ctx context.Context) ([]*Market, error) {
	markets := []*Market{}
	firstPage, err := c.GetMarkets(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("couldn't get first page of markets: %w", err)
	}
	markets = append(markets, firstPage.Data...)
	nextCursor := firstPage.NextCursor
	if nextCursor == nil {
		return markets, nil
	}
	for {
		page, err := c.GetMarkets(ctx, nextCursor)
		if err != nil {
			return nil, fmt.Errorf("couldn't get markets for next cursor %s: %w", *nextCursor, err)
		}
		markets = append(markets, page.Data...)
		if page.NextCursor == nil {
			break
		}
		nextCursor = page.NextCursor
		decodedNextCursor, _ := base64.StdEncoding.DecodeString(*page.NextCursor)
		if string(decodedNextCursor) == "-1" {
			break
		}
	}
	return markets, nil
}

// DeriveRequest carries the L1-signed material needed to derive API creds.
// The signature itself is produced by the user's wallet; this client only
// forwards it.
type DeriveRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	Nonce     int64  `json:"nonce"`
}

// APICreds are the venue credentials for the authenticated user channel.
type APICreds struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// DeriveAPIKey exchanges a wallet signature for API credentials.
func (c *Client) DeriveAPIKey(ctx context.Context, req DeriveRequest) (*APICreds, error) {
	headers := map[string]string{
		"POLY_ADDRESS":   req.Address,
		"POLY_SIGNATURE": req.Signature,
		"POLY_TIMESTAMP": strconv.FormatInt(req.Timestamp, 10),
		"POLY_NONCE":     strconv.FormatInt(req.Nonce, 10),
	}

	creds, err := httpclient.PostResource[*APICreds](ctx, c.httpClient, c.baseURL, "/auth/derive-api-key", nil, headers, []int{200})
	if err != nil {
		return nil, fmt.Errorf("couldn't derive API key: %w", err)
	}
	return creds, nil
}
