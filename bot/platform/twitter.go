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
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

// TwitterConfig holds app credentials and endpoint for the Twitter client.
type TwitterConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string
}

// TwitterClient uses app-only OAuth2 bearer tokens. Token acquisition and
// refresh are handled by the oauth2 transport; retries by retryablehttp
// underneath it.
type TwitterClient struct {
	cfg     TwitterConfig
	http    *http.Client
	limiter *rate.Limiter
}

func NewTwitterClient(cfg TwitterConfig) *TwitterClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.Logger = nil

	oauthCfg := &clientcredentials.Config{
		ClientID:     cfg.APIKey,
		ClientSecret: cfg.APISecret,
		TokenURL:     cfg.BaseURL + "/oauth2/token",
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, rc.StandardClient())

	return &TwitterClient{
		cfg:     cfg,
		http:    oauthCfg.Client(ctx),
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 3),
	}
}

func (c *TwitterClient) Name() string {
	return Twitter
}

func (c *TwitterClient) CreatePost(ctx context.Context, imageURL, caption string) (string, error) {
	text := caption
	if imageURL != "" {
		text = caption + " " + imageURL
	}
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/2/tweets", map[string]any{"text": text}, &resp); err != nil {
		return "", errors.Wrap(err, "twitter: failed to create post")
	}
	return resp.Data.ID, nil
}

func (c *TwitterClient) CreateComment(ctx context.Context, postID, text string) (string, error) {
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	body := map[string]any{
		"text":  text,
		"reply": map[string]any{"in_reply_to_tweet_id": postID},
	}
	if err := c.post(ctx, "/2/tweets", body, &resp); err != nil {
		return "", errors.Wrapf(err, "twitter: failed to comment on %s", postID)
	}
	return resp.Data.ID, nil
}

func (c *TwitterClient) CreateReply(ctx context.Context, commentID, text string) (string, error) {
	// Replies and comments are both tweets threaded under a parent.
	id, err := c.CreateComment(ctx, commentID, text)
	if err != nil {
		return "", errors.Wrapf(err, "twitter: failed to reply to %s", commentID)
	}
	return id, nil
}

func (c *TwitterClient) FetchPost(ctx context.Context, postID string) (Post, error) {
	var resp struct {
		Data struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/2/tweets/%s?tweet.fields=text", postID)
	if err := c.get(ctx, path, &resp); err != nil {
		return Post{}, errors.Wrapf(err, "twitter: failed to fetch post %s", postID)
	}
	return Post{ID: resp.Data.ID, Text: resp.Data.Text}, nil
}

func (c *TwitterClient) FetchComments(ctx context.Context, postID string, limit int) ([]Comment, error) {
	var resp struct {
		Data []struct {
			ID       string `json:"id"`
			AuthorID string `json:"author_id"`
			Text     string `json:"text"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/2/tweets/search/recent?query=conversation_id:%s&max_results=%d", postID, limit)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, errors.Wrapf(err, "twitter: failed to fetch comments for %s", postID)
	}

	comments := make([]Comment, 0, len(resp.Data))
	for _, item := range resp.Data {
		comments = append(comments, Comment{
			ID:     item.ID,
			PostID: postID,
			Text:   item.Text,
		})
	}
	return comments, nil
}

func (c *TwitterClient) post(ctx context.Context, path string, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to marshal request body")
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(payload), out)
}

func (c *TwitterClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *TwitterClient) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
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
