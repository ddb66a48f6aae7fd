// Package forum holds the wire types of the roundtable forum API and an HTTP
// client for the handful of endpoints the terminal client needs.
package forum

import (
	"strings"
	"time"
)

// AuthorType tags who wrote a post.
type AuthorType string

const (
	AuthorHuman AuthorType = "human"
	AuthorAgent AuthorType = "agent"
)

// PostStatus is the body-computation state of a post.
type PostStatus string

const (
	PostPending   PostStatus = "pending"
	PostCompleted PostStatus = "completed"
	PostFailed    PostStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s PostStatus) Terminal() bool {
	return s == PostCompleted || s == PostFailed
}

// JobStatus is the state of a topic's roundtable discussion job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

type TopicStatus string

const (
	TopicDraft  TopicStatus = "draft"
	TopicOpen   TopicStatus = "open"
	TopicClosed TopicStatus = "closed"
)

type TopicMode string

const (
	ModeHumanAgent TopicMode = "human_agent"
	ModeRoundtable TopicMode = "roundtable"
	ModeBoth       TopicMode = "both"
)

// Post is a single message in a topic.
type Post struct {
	ID          string     `json:"id"`
	TopicID     string     `json:"topic_id"`
	Author      string     `json:"author"`
	AuthorType  AuthorType `json:"author_type"`
	ExpertName  *string    `json:"expert_name"`
	ExpertLabel *string    `json:"expert_label"`
	Body        string     `json:"body"`
	Mentions    []string   `json:"mentions"`
	InReplyToID *string    `json:"in_reply_to_id"`
	Status      PostStatus `json:"status"`
	CreatedAt   string     `json:"created_at"`
}

// ParentID returns the referenced parent id, or "" for root-level posts.
func (p Post) ParentID() string {
	if p.InReplyToID == nil {
		return ""
	}
	return strings.TrimSpace(*p.InReplyToID)
}

// DisplayName prefers the expert label for agent posts.
func (p Post) DisplayName() string {
	if p.AuthorType == AuthorAgent && p.ExpertLabel != nil && strings.TrimSpace(*p.ExpertLabel) != "" {
		return *p.ExpertLabel
	}
	return p.Author
}

// CreatedTime parses CreatedAt. Unparseable values yield the zero time.
func (p Post) CreatedTime() time.Time {
	parsed, err := ParseTimestamp(p.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// Topic is the container posts and the discussion job belong to.
type Topic struct {
	ID               string            `json:"id"`
	SessionID        string            `json:"session_id"`
	Title            string            `json:"title"`
	Body             string            `json:"body"`
	Category         *string           `json:"category"`
	Status           TopicStatus       `json:"status"`
	Mode             TopicMode         `json:"mode"`
	NumRounds        int               `json:"num_rounds"`
	ExpertNames      []string          `json:"expert_names"`
	RoundtableResult *DiscussionResult `json:"roundtable_result"`
	RoundtableStatus JobStatus         `json:"roundtable_status"`
	CreatedAt        string            `json:"created_at"`
	UpdatedAt        string            `json:"updated_at"`
}

// DiscussionResult is the outcome of a completed discussion job.
type DiscussionResult struct {
	Transcript  string   `json:"discussion_history"`
	Summary     string   `json:"discussion_summary"`
	TurnCount   int      `json:"turns_count"`
	CostUSD     *float64 `json:"cost_usd"`
	CompletedAt string   `json:"completed_at"`
}

// DiscussionProgress is informational only; any field may be zero.
type DiscussionProgress struct {
	CompletedTurns int    `json:"completed_turns"`
	TotalTurns     int    `json:"total_turns"`
	CurrentRound   int    `json:"current_round"`
	LatestSpeaker  string `json:"latest_speaker"`
}

// DiscussionStatus is the payload of the job status endpoint.
type DiscussionStatus struct {
	Status   JobStatus           `json:"status"`
	Result   *DiscussionResult   `json:"result"`
	Progress *DiscussionProgress `json:"progress"`
}

// TopicExpert is an expert persona attached to a topic; Name is what
// mentions refer to.
type TopicExpert struct {
	Name                string `json:"name"`
	Label               string `json:"label"`
	Description         string `json:"description"`
	Source              string `json:"source"`
	RoleFile            string `json:"role_file"`
	AddedAt             string `json:"added_at"`
	IsFromTopicCreation bool   `json:"is_from_topic_creation"`
}

type CreatePostRequest struct {
	Author      string  `json:"author"`
	Body        string  `json:"body"`
	InReplyToID *string `json:"in_reply_to_id,omitempty"`
}

type MentionRequest struct {
	Author      string  `json:"author"`
	Body        string  `json:"body"`
	ExpertName  string  `json:"expert_name"`
	InReplyToID *string `json:"in_reply_to_id,omitempty"`
}

type MentionResponse struct {
	UserPost    Post       `json:"user_post"`
	ReplyPostID string     `json:"reply_post_id"`
	Status      PostStatus `json:"status"`
}

type StartDiscussionRequest struct {
	NumRounds    int     `json:"num_rounds"`
	MaxTurns     int     `json:"max_turns"`
	MaxBudgetUSD float64 `json:"max_budget_usd"`
}

// ParseTimestamp accepts the RFC3339 variants the backend emits, including
// naive ISO timestamps without a zone (treated as UTC).
func ParseTimestamp(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, errEmptyTimestamp
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, trimmed)
		if err == nil {
			return parsed, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
}
