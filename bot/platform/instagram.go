package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// InstagramConfig holds credentials and endpoint for the Instagram client.
type InstagramConfig struct {
	APIKey  string
	BaseURL string
}

// InstagramClient talks to the Instagram graph API with a bearer session.
type InstagramClient struct {
	cfg     InstagramConfig
	http    *http.Client
	limiter *rate.Limiter
}

// NewInstagramClient creates an Instagram client. Transient HTTP failures are
// retried at the transport level; the rate limiter keeps the bot under the
// platform quota.
func NewInstagramClient(cfg InstagramConfig) *InstagramClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.Logger = nil

	return &InstagramClient{
		cfg:     cfg,
		http:    rc.StandardClient(),
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

func (c *InstagramClient) Name() string {
	return Instagram
}

func (c *InstagramClient) CreatePost(ctx context.Context, imageURL, caption string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	err := c.post(ctx, "/media", map[string]string{
		"image_url": imageURL,
		"caption":   caption,
	}, &resp)
	if err != nil {
		return "", errors.Wrap(err, "instagram: failed to create post")
	}
	return resp.ID, nil
}

func (c *InstagramClient) CreateComment(ctx context.Context, postID, text string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	err := c.post(ctx, fmt.Sprintf("/media/%s/comments", postID), map[string]string{
		"text": text,
	}, &resp)
	if err != nil {
		return "", errors.Wrapf(err, "instagram: failed to comment on %s", postID)
	}
	return resp.ID, nil
}

func (c *InstagramClient) CreateReply(ctx context.Context, commentID, text string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	err := c.post(ctx, fmt.Sprintf("/comments/%s/replies", commentID), map[string]string{
		"text": text,
	}, &resp)
	if err != nil {
		return "", errors.Wrapf(err, "instagram: failed to reply to %s", commentID)
	}
	return resp.ID, nil
}

func (c *InstagramClient) FetchPost(ctx context.Context, postID string) (Post, error) {
	var resp struct {
		ID      string `json:"id"`
		Caption string `json:"caption"`
	}
	path := fmt.Sprintf("/media/%s?fields=id,caption", postID)
	if err := c.get(ctx, path, &resp); err != nil {
		return Post{}, errors.Wrapf(err, "instagram: failed to fetch post %s", postID)
	}
	return Post{ID: resp.ID, Text: resp.Caption}, nil
}

func (c *InstagramClient) FetchComments(ctx context.Context, postID string, limit int) ([]Comment, error) {
	var resp struct {
		Data []struct {
			ID     string `json:"id"`
			UserID int32  `json:"user_id"`
			Text   string `json:"text"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/media/%s/comments?limit=%d", postID, limit)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, errors.Wrapf(err, "instagram: failed to fetch comments for %s", postID)
	}

	comments := make([]Comment, 0, len(resp.Data))
	for _, item := range resp.Data {
		comments = append(comments, Comment{
			ID:     item.ID,
			PostID: postID,
			UserID: item.UserID,
			Text:   item.Text,
		})
	}
	return comments, nil
}

func (c *InstagramClient) post(ctx context.Context, path string, body map[string]string, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to marshal request body")
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(payload), out)
}

func (c *InstagramClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *InstagramClient) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("unexpected status %d: %s", resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.Wrap(err, "failed to decode response")
		}
	}
	return nil
}
