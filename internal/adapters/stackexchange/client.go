// Package stackexchange fetches user profiles and avatars from the Stack
// Exchange API.
package stackexchange

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/soprofile/internal/domain/model"
	"github.com/okian/soprofile/pkg/logger"
	"github.com/okian/soprofile/pkg/metrics"
)

const (
	DefaultBaseURL = "https://api.stackexchange.com/2.3"
	DefaultSite    = "stackoverflow"

	maxAvatarBytes = 2 << 20
	maxBodyBytes   = 1 << 20
)

// Client talks to the Stack Exchange API.
type Client struct {
	baseURL string
	site    string
	key     string
	http    *http.Client
	log     logger.Logger
}

// NewClient creates a client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		site:    DefaultSite,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("stackexchange")
	return c
}

type usersResponse struct {
	Items []struct {
		UserID      int64  `json:"user_id"`
		DisplayName string `json:"display_name"`
		Reputation  int    `json:"reputation"`
		BadgeCounts struct {
			Gold   int `json:"gold"`
			Silver int `json:"silver"`
			Bronze int `json:"bronze"`
		} `json:"badge_counts"`
		Location     string `json:"location"`
		WebsiteURL   string `json:"website_url"`
		ProfileImage string `json:"profile_image"`
	} `json:"items"`
	ErrorID      int    `json:"error_id"`
	ErrorName    string `json:"error_name"`
	ErrorMessage string `json:"error_message"`
}

// User fetches a user by id. Returns ErrUserNotFound for unknown ids.
func (c *Client) User(ctx context.Context, id int64) (model.User, error) {
	q := url.Values{}
	q.Set("site", c.site)
	if c.key != "" {
		q.Set("key", c.key)
	}
	endpoint := c.baseURL + "/users/" + strconv.FormatInt(id, 10) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.User{}, fmt.Errorf("build user request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordUpstreamError("stackexchange")
		return model.User{}, fmt.Errorf("fetch user %d: %w", id, err)
	}
	defer resp.Body.Close()

	var body usersResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body)

	if body.ErrorID != 0 || resp.StatusCode != http.StatusOK {
		metrics.RecordUpstreamError("stackexchange")
		apiErr := &APIError{Status: resp.StatusCode, ID: body.ErrorID, Name: body.ErrorName, Message: body.ErrorMessage}
		if apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
		c.log.Warn(ctx, "user request rejected", logger.Int64("user_id", id), logger.Error(apiErr))
		return model.User{}, apiErr
	}
	if decodeErr != nil {
		metrics.RecordUpstreamError("stackexchange")
		return model.User{}, fmt.Errorf("decode user %d: %w", id, decodeErr)
	}
	if len(body.Items) == 0 {
		return model.User{}, fmt.Errorf("user %d: %w", id, ErrUserNotFound)
	}

	it := body.Items[0]
	return model.User{
		ID:         it.UserID,
		Username:   html.UnescapeString(it.DisplayName),
		Reputation: it.Reputation,
		Gold:       it.BadgeCounts.Gold,
		Silver:     it.BadgeCounts.Silver,
		Bronze:     it.BadgeCounts.Bronze,
		Location:   html.UnescapeString(it.Location),
		Website:    it.WebsiteURL,
		AvatarLink: it.ProfileImage,
	}, nil
}

// Avatar downloads an image and returns it as a base64 data URI.
func (c *Client) Avatar(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("build avatar request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordUpstreamError("avatar")
		return "", fmt.Errorf("fetch avatar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordUpstreamError("avatar")
		return "", &APIError{Status: resp.StatusCode, Message: resp.Status}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAvatarBytes+1))
	if err != nil {
		return "", fmt.Errorf("read avatar: %w", err)
	}
	if len(raw) > maxAvatarBytes {
		return "", fmt.Errorf("avatar larger than %d bytes", maxAvatarBytes)
	}

	return "data:" + imageType(resp.Header.Get("Content-Type"), raw) + ";base64," +
		base64.StdEncoding.EncodeToString(raw), nil
}

func imageType(header string, raw []byte) string {
	if mt, _, err := mime.ParseMediaType(header); err == nil && strings.HasPrefix(mt, "image/") {
		return mt
	}
	if mt := http.DetectContentType(raw); strings.HasPrefix(mt, "image/") {
		return mt
	}
	return "image/png"
}
