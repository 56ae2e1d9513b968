package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/carebridge/shared-care-platform/internal/model"
)

// HTTPClient talks to the gateway's JSON API. It carries a bearer token
// resolved by the host's auth layer; the engine itself never inspects it.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a gateway client rooted at baseURL.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return &HTTPClient{
		baseURL: baseURL + "/api/v1",
		token:   token,
		client:  &http.Client{},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func convPath(conversationID string) string {
	if conversationID == "" {
		// The gateway resolves the caller's own conversation.
		conversationID = "current"
	}
	return "/conversations/" + url.PathEscape(conversationID)
}

// Load fetches a conversation and its full message sequence.
func (c *HTTPClient) Load(ctx context.Context, conversationID string) (*model.LoadResult, error) {
	var out model.LoadResult
	if err := c.do(ctx, http.MethodGet, convPath(conversationID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Send delivers a message, returning the acknowledgment (or the safety
// interception outcome).
func (c *HTTPClient) Send(ctx context.Context, conversationID, content string) (*model.SendResult, error) {
	var out model.SendResult
	in := model.SendMessageRequest{Content: content}
	if err := c.do(ctx, http.MethodPost, convPath(conversationID)+"/messages", &in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PollMessages fetches messages past the given watermark.
func (c *HTTPClient) PollMessages(ctx context.Context, conversationID string, afterID int64) ([]model.Message, error) {
	var out model.PollResult
	path := convPath(conversationID) + "/messages?after=" + strconv.FormatInt(afterID, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// CheckUpdates performs the lightweight update probe.
func (c *HTTPClient) CheckUpdates(ctx context.Context, conversationID string) (*model.CheckResult, error) {
	var out model.CheckResult
	if err := c.do(ctx, http.MethodGet, convPath(conversationID)+"/check", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead advances the caller's read watermark to the newest message.
func (c *HTTPClient) MarkRead(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodPost, convPath(conversationID)+"/read", nil, nil)
}

// ListConversations fetches the scoped conversation list with stats.
func (c *HTTPClient) ListConversations(ctx context.Context, groupID string) (*model.ListResult, error) {
	var out model.ListResult
	path := "/conversations"
	if groupID != "" {
		path += "?group=" + url.QueryEscape(groupID)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ToggleAI persists the AI-enabled flag, returning the new value.
func (c *HTTPClient) ToggleAI(ctx context.Context, conversationID string, enabled bool) (bool, error) {
	in := map[string]bool{"enabled": enabled}
	var out struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.do(ctx, http.MethodPost, convPath(conversationID)+"/ai", in, &out); err != nil {
		return false, err
	}
	return out.Enabled, nil
}

// SetRisk persists a risk level, returning the new value.
func (c *HTTPClient) SetRisk(ctx context.Context, conversationID string, level model.RiskLevel) (model.RiskLevel, error) {
	in := map[string]model.RiskLevel{"risk": level}
	var out struct {
		Risk model.RiskLevel `json:"risk"`
	}
	if err := c.do(ctx, http.MethodPost, convPath(conversationID)+"/risk", in, &out); err != nil {
		return "", err
	}
	return out.Risk, nil
}

// SetStatus persists a lifecycle status, returning the new value.
func (c *HTTPClient) SetStatus(ctx context.Context, conversationID string, status model.Status) (model.Status, error) {
	in := map[string]model.Status{"status": status}
	var out struct {
		Status model.Status `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, convPath(conversationID)+"/status", in, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// GenerateDraft asks the gateway for an AI reply draft.
func (c *HTTPClient) GenerateDraft(ctx context.Context, conversationID string) (*model.DraftResult, error) {
	var out model.DraftResult
	if err := c.do(ctx, http.MethodPost, convPath(conversationID)+"/drafts", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendDraft delivers an approved draft to the thread.
func (c *HTTPClient) SendDraft(ctx context.Context, conversationID, draftID, content string) (*model.SendResult, error) {
	in := map[string]string{"content": content}
	var out model.SendResult
	path := convPath(conversationID) + "/drafts/" + url.PathEscape(draftID) + "/send"
	if err := c.do(ctx, http.MethodPost, path, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateSummary asks the gateway for a conversation summary.
func (c *HTTPClient) GenerateSummary(ctx context.Context, conversationID string) (*model.SummaryResult, error) {
	var out model.SummaryResult
	if err := c.do(ctx, http.MethodPost, convPath(conversationID)+"/summary", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveNote persists content as a clinical note.
func (c *HTTPClient) SaveNote(ctx context.Context, conversationID, content string) (*model.NoteResult, error) {
	in := map[string]string{"content": content}
	var out model.NoteResult
	if err := c.do(ctx, http.MethodPost, convPath(conversationID)+"/notes", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Directory searches the care directory for mention candidates.
func (c *HTTPClient) Directory(ctx context.Context, query string) ([]model.DirectoryEntry, error) {
	var out struct {
		Entries []model.DirectoryEntry `json:"entries"`
	}
	path := "/directory"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}
