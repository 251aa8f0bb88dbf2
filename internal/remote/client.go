package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/mmcdole/setlist/internal/domain"
)

const userAgent = "Setlist/1.0"

// Client implements domain.PlaylistRepository against the playlist REST API
type Client struct {
	baseURL string
	token   string
	userID  string
	http    *retryablehttp.Client
	logger  *slog.Logger
}

// NewClient creates a new API client whose requests follow policy
func NewClient(baseURL, token, userID string, policy Policy, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Timeout: policy.Timeout}
	rc.Logger = logger
	rc.RetryMax = policy.MaxAttempts - 1
	rc.RetryWaitMin = policy.BackoffMin
	rc.RetryWaitMax = policy.BackoffMax
	rc.CheckRetry = policy.shouldRetry
	rc.Backoff = func(_, _ time.Duration, attempt int, _ *http.Response) time.Duration {
		return policy.Backoff(attempt)
	}
	rc.ErrorHandler = func(resp *http.Response, err error, numTries int) (*http.Response, error) {
		return resp, &exhaustedError{attempts: numTries, err: err}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		userID:  userID,
		http:    rc,
		logger:  logger,
	}
}

// exhaustedError carries the attempt count out of the retry loop
type exhaustedError struct {
	attempts int
	err      error
}

func (e *exhaustedError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("giving up after %d attempt(s)", e.attempts)
	}
	return fmt.Sprintf("giving up after %d attempt(s): %v", e.attempts, e.err)
}

func (e *exhaustedError) Unwrap() error { return e.err }

// doRequest performs an authenticated request and maps failures onto the domain taxonomy
func (c *Client) doRequest(ctx context.Context, op, method, path string, query url.Values, body interface{}) ([]byte, error) {
	reqURL := c.baseURL + path
	if query != nil {
		reqURL = fmt.Sprintf("%s?%s", reqURL, query.Encode())
	}

	var rawBody interface{}
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		rawBody = encoded
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, reqURL, rawBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("api request", "method", method, "url", reqURL)

	resp, err := c.http.Do(req)
	attempts := 1
	var exhausted *exhaustedError
	if errors.As(err, &exhausted) {
		attempts = exhausted.attempts
		err = exhausted.err
	}

	if resp == nil {
		if err == nil {
			err = errors.New("no response")
		}
		return nil, c.transportError(ctx, op, attempts, err)
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, &domain.RemoteError{Op: op, Status: resp.StatusCode, Attempts: attempts, Err: fmt.Errorf("%w: failed to read response: %v", domain.ErrRemoteUnavailable, readErr)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, nil
	}

	remoteErr := &domain.RemoteError{Op: op, Status: resp.StatusCode, Attempts: attempts, Err: statusError(resp.StatusCode)}
	c.logger.Error("api request error",
		"op", op,
		"status", resp.StatusCode,
		"attempts", attempts,
		"body", truncate(string(respBody), 512),
	)
	return nil, remoteErr
}

// transportError classifies a failure that produced no response
func (c *Client) transportError(ctx context.Context, op string, attempts int, err error) error {
	switch {
	case errors.Is(err, context.Canceled) || (ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded)):
		return fmt.Errorf("%s: %w", op, ctx.Err())
	case isTimeout(err):
		c.logger.Warn("api request timed out", "op", op, "attempts", attempts)
		return &domain.RemoteError{Op: op, Attempts: attempts, Err: fmt.Errorf("%w: %v", domain.ErrTimeout, err)}
	default:
		c.logger.Error("api request failed", "op", op, "attempts", attempts, "error", err)
		return &domain.RemoteError{Op: op, Attempts: attempts, Err: fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)}
	}
}

// statusError maps a final non-2xx status to a sentinel
func statusError(status int) error {
	switch {
	case isRateLimit(status):
		return domain.ErrRateLimited
	case status >= 500:
		return domain.ErrRemoteUnavailable
	default:
		return domain.ErrRemoteRejected
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func pageQuery(offset, limit int) url.Values {
	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))
	return query
}

// GetPlaylists returns one page of the user's playlists and the total count
func (c *Client) GetPlaylists(ctx context.Context, offset, limit int) ([]*domain.Playlist, int, error) {
	path := fmt.Sprintf("/v1/users/%s/playlists", url.PathEscape(c.userID))
	body, err := c.doRequest(ctx, "get playlists", http.MethodGet, path, pageQuery(offset, limit), nil)
	if err != nil {
		return nil, 0, err
	}

	var resp playlistsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0, fmt.Errorf("failed to parse response: %w", err)
	}

	return MapPlaylists(resp.Items), resp.TotalNumberOfItems, nil
}

// GetPlaylistItemIDs returns one page of item ids of a playlist and the total count
func (c *Client) GetPlaylistItemIDs(ctx context.Context, playlistID string, offset, limit int) ([]string, int, error) {
	path := fmt.Sprintf("/v1/playlists/%s/items", url.PathEscape(playlistID))
	body, err := c.doRequest(ctx, "get playlist items", http.MethodGet, path, pageQuery(offset, limit), nil)
	if err != nil {
		return nil, 0, err
	}

	var resp itemsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0, fmt.Errorf("failed to parse response: %w", err)
	}

	return MapItemIDs(resp.Items), resp.TotalNumberOfItems, nil
}

// AddToPlaylist adds items to an existing playlist
func (c *Client) AddToPlaylist(ctx context.Context, playlistID string, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	path := fmt.Sprintf("/v1/playlists/%s/items", url.PathEscape(playlistID))
	_, err := c.doRequest(ctx, "add to playlist", http.MethodPost, path, nil, addItemsRequest{ItemIDs: itemIDs})
	return err
}

// RemoveFromPlaylist removes items from a playlist
func (c *Client) RemoveFromPlaylist(ctx context.Context, playlistID string, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	escaped := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		escaped[i] = url.PathEscape(id)
	}
	path := fmt.Sprintf("/v1/playlists/%s/items/%s", url.PathEscape(playlistID), strings.Join(escaped, ","))
	_, err := c.doRequest(ctx, "remove from playlist", http.MethodDelete, path, nil, nil)
	return err
}
