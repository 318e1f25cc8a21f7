package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yoockh/auxilium/internal/models"
)

type RelayMode string

const (
	ModeCompletion RelayMode = "completion" // POST /completion, single message
	ModeChat       RelayMode = "chat"       // POST /chat, full history
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server returned %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// APIClient talks to the auxilium server as one user. It implements both Store
// and Relay. The server derives the user from the bearer token, so the user id
// passed to Store methods must be the token's subject.
type APIClient struct {
	baseURL string
	token   string
	userID  string
	mode    RelayMode
	http    *http.Client
}

// NewAPIClient reads the user id from the token's subject without verifying the
// signature; verification is the server's job.
func NewAPIClient(baseURL, token string, mode RelayMode, hc *http.Client) (*APIClient, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("chatclient: invalid base url: %w", err)
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("chatclient: parse token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("chatclient: token has no subject")
	}
	if mode == "" {
		mode = ModeCompletion
	}
	if hc == nil {
		// no client timeout: replies stream for as long as the model generates
		hc = &http.Client{}
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		userID:  claims.Subject,
		mode:    mode,
		http:    hc,
	}, nil
}

func (c *APIClient) UserID() string { return c.userID }

func (c *APIClient) checkUser(userID string) error {
	if userID != c.userID {
		return fmt.Errorf("chatclient: user %q does not match token subject", userID)
	}
	return nil
}

type createConversationBody struct {
	Title string `json:"title"`
}

type conversationListBody struct {
	Conversations []models.ConversationSummary `json:"conversations"`
}

type exchangeBody struct {
	UserText      string `json:"user_text"`
	AssistantText string `json:"assistant_text"`
	Provider      string `json:"provider,omitempty"`
	Model         string `json:"model,omitempty"`
}

type messageListBody struct {
	ConversationID string           `json:"conversation_id"`
	Messages       []models.Message `json:"messages"`
}

func (c *APIClient) CreateConversation(ctx context.Context, userID, title string) (models.ConversationSummary, error) {
	var out models.ConversationSummary
	if err := c.checkUser(userID); err != nil {
		return out, err
	}
	err := c.doJSON(ctx, http.MethodPost, "/conversations", createConversationBody{Title: title}, &out)
	return out, err
}

func (c *APIClient) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	if err := c.checkUser(userID); err != nil {
		return nil, err
	}
	var out conversationListBody
	if err := c.doJSON(ctx, http.MethodGet, "/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

func (c *APIClient) AppendExchange(ctx context.Context, ex Exchange) error {
	if err := c.checkUser(ex.UserID); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, "/conversations/"+url.PathEscape(ex.ConversationID)+"/exchanges", exchangeBody{
		UserText:      ex.UserText,
		AssistantText: ex.AssistantText,
		Provider:      ex.Provider,
		Model:         ex.Model,
	}, nil)
}

func (c *APIClient) ListMessages(ctx context.Context, conversationID, userID string) ([]models.Message, error) {
	if err := c.checkUser(userID); err != nil {
		return nil, err
	}
	var out messageListBody
	if err := c.doJSON(ctx, http.MethodGet, "/conversations/"+url.PathEscape(conversationID)+"/messages", nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

type completionBody struct {
	UserMessage string `json:"user_message"`
}

// Open starts a relay request and returns the still-streaming body.
func (c *APIClient) Open(ctx context.Context, req RelayRequest) (*RelayResponse, error) {
	var (
		path    string
		payload any
	)
	switch c.mode {
	case ModeChat:
		msgs := make([]Entry, 0, len(req.History)+1)
		msgs = append(append(msgs, req.History...), Entry{Role: models.RoleUser, Content: req.Message})
		path, payload = "/chat", msgs
	default:
		path, payload = "/completion", completionBody{UserMessage: req.Message}
	}

	resp, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	return &RelayResponse{
		Body:     resp.Body,
		Provider: resp.Header.Get("X-Provider"),
		Model:    resp.Header.Get("X-Model"),
	}, nil
}

func (c *APIClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.do(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("chatclient: decode %s %s: %w", method, path, err)
	}
	return nil
}

// do sends the request and turns non-2xx answers into *APIError. On success the
// caller owns resp.Body.
func (c *APIClient) do(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	apiErr := &APIError{Status: resp.StatusCode}
	if json.Unmarshal(raw, &payload) == nil {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
