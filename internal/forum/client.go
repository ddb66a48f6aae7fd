package forum

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"roundtable/internal/id"
)

const (
	defaultTimeout   = 15 * time.Second
	maxResponseBytes = 8 << 20
	requestIDHeader  = "X-Request-ID"
)

// Client talks to the forum backend over HTTP/JSON.
type Client struct {
	baseURL   string
	http      *http.Client
	timeout   time.Duration
	logger    *slog.Logger
	requestID func() string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds every request, on top of the caller's context.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithRequestIDs(next func() string) Option {
	return func(c *Client) {
		if next != nil {
			c.requestID = next
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:      &http.Client{},
		timeout:   defaultTimeout,
		logger:    slog.Default(),
		requestID: id.New,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListTopics(ctx context.Context) ([]Topic, error) {
	var topics []Topic
	if err := c.do(ctx, http.MethodGet, "/topics", nil, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

func (c *Client) GetTopic(ctx context.Context, topicID string) (Topic, error) {
	var topic Topic
	err := c.do(ctx, http.MethodGet, "/topics/"+url.PathEscape(topicID), nil, &topic)
	return topic, err
}

func (c *Client) ListTopicExperts(ctx context.Context, topicID string) ([]TopicExpert, error) {
	var experts []TopicExpert
	if err := c.do(ctx, http.MethodGet, "/topics/"+url.PathEscape(topicID)+"/experts", nil, &experts); err != nil {
		return nil, err
	}
	return experts, nil
}

func (c *Client) ListPosts(ctx context.Context, topicID string) ([]Post, error) {
	var posts []Post
	if err := c.do(ctx, http.MethodGet, "/topics/"+url.PathEscape(topicID)+"/posts", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) CreatePost(ctx context.Context, topicID string, req CreatePostRequest) (Post, error) {
	var post Post
	err := c.do(ctx, http.MethodPost, "/topics/"+url.PathEscape(topicID)+"/posts", req, &post)
	return post, err
}

// CreateMentionPost saves the human post and asks the backend to compute an
// expert reply out-of-band. The returned ReplyPostID is pending.
func (c *Client) CreateMentionPost(ctx context.Context, topicID string, req MentionRequest) (MentionResponse, error) {
	var resp MentionResponse
	err := c.do(ctx, http.MethodPost, "/topics/"+url.PathEscape(topicID)+"/posts/mention", req, &resp)
	if err == nil && strings.TrimSpace(resp.ReplyPostID) == "" {
		return resp, errors.New("mention response missing reply_post_id")
	}
	return resp, err
}

// GetReplyStatus returns the reply post, including while it is still pending.
func (c *Client) GetReplyStatus(ctx context.Context, topicID, replyID string) (Post, error) {
	var post Post
	path := "/topics/" + url.PathEscape(topicID) + "/posts/mention/" + url.PathEscape(replyID)
	err := c.do(ctx, http.MethodGet, path, nil, &post)
	return post, err
}

func (c *Client) StartDiscussion(ctx context.Context, topicID string, req StartDiscussionRequest) (DiscussionStatus, error) {
	var status DiscussionStatus
	err := c.do(ctx, http.MethodPost, "/topics/"+url.PathEscape(topicID)+"/roundtable", req, &status)
	return status, err
}

func (c *Client) GetDiscussionStatus(ctx context.Context, topicID string) (DiscussionStatus, error) {
	var status DiscussionStatus
	err := c.do(ctx, http.MethodGet, "/topics/"+url.PathEscape(topicID)+"/roundtable/status", nil, &status)
	return status, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errors.Wrapf(err, "encode %s %s", method, path)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrapf(err, "build %s %s", method, path)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := c.requestID()
	if requestID != "" {
		req.Header.Set(requestIDHeader, requestID)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "forum request failed",
			"method", method, "path", path, "request_id", requestID, "error", err)
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return errors.Wrapf(err, "read %s %s", method, path)
	}
	c.logger.DebugContext(ctx, "forum request",
		"method", method, "path", path, "status", resp.StatusCode,
		"request_id", requestID, "duration", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, raw, requestID)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "decode %s %s", method, path)
	}
	return nil
}
