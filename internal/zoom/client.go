// Package zoom schedules interview meetings through the Zoom REST API using a
// server-to-server OAuth application.
package zoom

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL       = "https://api.zoom.us/v2"
	oauthURL     = "https://zoom.us/oauth/token"
	contentType  = "application/json"
	meetingsPath = "/users/me/meetings"

	// Zoom meeting type 2 is a scheduled meeting.
	scheduledMeetingType = 2
)

// FailureKind separates credential problems from API problems so callers can
// distinguish "fix your credentials" from "retry later".
type FailureKind string

const (
	KindAuth FailureKind = "auth"
	KindAPI  FailureKind = "api"
)

// SchedulingError carries the status and raw body of a failed Zoom call for
// diagnostics. Calls are never retried automatically.
type SchedulingError struct {
	Kind   FailureKind
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *SchedulingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("zoom %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("zoom %s: status %d: %s", e.Op, e.Status, e.Body)
}

func (e *SchedulingError) Unwrap() error { return e.Err }

// Meeting is the result of a successful meeting creation.
type Meeting struct {
	JoinURL   string `json:"join_url"`
	MeetingID int64  `json:"id"`
	StartURL  string `json:"start_url"`
}

// MeetingRequest describes the meeting to create.
type MeetingRequest struct {
	Topic     string
	StartTime time.Time
	Duration  int
	Timezone  string
}

// Client talks to the Zoom API. The access token obtained via the
// account-credentials exchange is cached on the instance and reused across
// calls for the client's lifetime; there is no refresh-on-expiry logic, an
// invalid-token response surfaces as a SchedulingError instead.
type Client struct {
	accountID    string
	clientID     string
	clientSecret string
	token        string

	logger     *zap.Logger
	HTTPClient *http.Client
	APIURL     string
	OAuthURL   string
}

// NewClient fails fast when any of the three credentials is missing.
func NewClient(accountID, clientID, clientSecret string, logger *zap.Logger) (*Client, error) {
	accountID = strings.TrimSpace(accountID)
	clientID = strings.TrimSpace(clientID)
	clientSecret = strings.TrimSpace(clientSecret)

	if accountID == "" || clientID == "" || clientSecret == "" {
		return nil, errors.New("zoom account id, client id and client secret are required")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		accountID:    accountID,
		clientID:     clientID,
		clientSecret: clientSecret,
		logger:       logger,
		APIURL:       apiURL,
		OAuthURL:     oauthURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

// Token returns the cached access token, performing the client-credentials
// exchange on first use.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.token != "" {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "account_credentials")
	form.Set("account_id", c.accountID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.OAuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &SchedulingError{Kind: KindAuth, Op: "token", Err: err}
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.logger.Debug("requesting zoom access token", zap.String("account_id", c.accountID))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", &SchedulingError{Kind: KindAuth, Op: "token", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &SchedulingError{Kind: KindAuth, Op: "token", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &SchedulingError{Kind: KindAuth, Op: "token", Status: resp.StatusCode, Body: string(body)}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", &SchedulingError{Kind: KindAuth, Op: "token", Err: err}
	}

	if tokenResp.AccessToken == "" {
		return "", &SchedulingError{Kind: KindAuth, Op: "token", Err: errors.New("empty access token in response")}
	}

	c.token = tokenResp.AccessToken
	return c.token, nil
}

// CreateMeeting creates a scheduled meeting with a waiting room, join-before-
// host enabled and no automatic recording.
func (c *Client) CreateMeeting(ctx context.Context, m MeetingRequest) (*Meeting, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"topic":      m.Topic,
		"type":       scheduledMeetingType,
		"start_time": m.StartTime.Format("2006-01-02T15:04:05"),
		"duration":   m.Duration,
		"timezone":   m.Timezone,
		"settings": map[string]any{
			"host_video":        true,
			"participant_video": true,
			"join_before_host":  true,
			"waiting_room":      true,
			"auto_recording":    "none",
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &SchedulingError{Kind: KindAPI, Op: "create meeting", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL+meetingsPath, bytes.NewReader(data))
	if err != nil {
		return nil, &SchedulingError{Kind: KindAPI, Op: "create meeting", Err: err}
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)

	c.logger.Debug("creating zoom meeting",
		zap.String("topic", m.Topic),
		zap.String("start_time", m.StartTime.Format(time.RFC3339)),
		zap.String("timezone", m.Timezone),
	)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &SchedulingError{Kind: KindAPI, Op: "create meeting", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SchedulingError{Kind: KindAPI, Op: "create meeting", Err: err}
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusUnauthorized:
		return nil, &SchedulingError{Kind: KindAuth, Op: "create meeting", Status: resp.StatusCode, Body: string(body)}
	default:
		return nil, &SchedulingError{Kind: KindAPI, Op: "create meeting", Status: resp.StatusCode, Body: string(body)}
	}

	var meeting Meeting
	if err := json.Unmarshal(body, &meeting); err != nil {
		return nil, &SchedulingError{Kind: KindAPI, Op: "create meeting", Err: err}
	}

	if meeting.JoinURL == "" {
		return nil, &SchedulingError{Kind: KindAPI, Op: "create meeting", Err: errors.New("response is missing join_url")}
	}

	return &meeting, nil
}
