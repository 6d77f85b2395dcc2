package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

const defaultEndpoint = "https://slack.com/api"

// HTTPClient represents the functionality we need from an *http.Client, or
// similar.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Client is a minimal Slack Web API client covering the methods this app
// calls. Every method posts JSON and decodes Slack's {"ok":...} envelope.
type Client struct {
	c        HTTPClient
	endpoint string
	botToken string
}

// NewClient returns a new *Client authenticating with the given bot token. An
// empty endpoint selects the public Slack API.
func NewClient(c HTTPClient, endpoint, botToken string) (*Client, error) {
	if c == nil {
		return nil, errors.New("must provide an http client")
	}
	if botToken == "" {
		return nil, errors.New("must provide a Slack bot token")
	}
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{c: c, endpoint: strings.TrimSuffix(endpoint, "/"), botToken: botToken}, nil
}

type apiResponse struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error"`
}

func (r apiResponse) status() (bool, string) { return r.Ok, r.Error }

type apiChecker interface {
	status() (bool, string)
}

// call posts a Web API method. A nil args posts an empty body; token selects
// the credential (bot token for everything except apps.connections.open).
func (c *Client) call(ctx context.Context, method, token string, args, out interface{}) error {
	u := c.endpoint + "/" + method

	var body io.Reader
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return errors.Wrapf(err, "failed to encode args for %s", method)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return errors.Wrapf(err, "failed to build request for %s", method)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.c.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to call %s", method)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("%s unexpected status: %s", method, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode %s response", method)
	}

	if checker, isChecker := out.(apiChecker); isChecker {
		if ok, apiErr := checker.status(); !ok {
			return errors.Errorf("%s: slack error: %s", method, apiErr)
		}
	}
	return nil
}

// AuthTestResponse identifies the workspace and bot we are connected as.
type AuthTestResponse struct {
	apiResponse
	TeamID string `json:"team_id"`
	UserID string `json:"user_id"`
	BotID  string `json:"bot_id"`
	Team   string `json:"team"`
}

func (c *Client) AuthTest(ctx context.Context) (*AuthTestResponse, error) {
	var resp AuthTestResponse
	if err := c.call(ctx, "auth.test", c.botToken, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type teamInfoResponse struct {
	apiResponse
	Team struct {
		Name string `json:"name"`
	} `json:"team"`
}

// TeamName returns the workspace display name.
func (c *Client) TeamName(ctx context.Context) (string, error) {
	var resp teamInfoResponse
	if err := c.call(ctx, "team.info", c.botToken, nil, &resp); err != nil {
		return "", err
	}
	return resp.Team.Name, nil
}

// User is a workspace member as returned by users.list / users.info.
type User struct {
	ID       string `json:"id"`
	Deleted  bool   `json:"deleted"`
	IsBot    bool   `json:"is_bot"`
	RealName string `json:"real_name"`
	Profile  struct {
		DisplayName string `json:"display_name"`
	} `json:"profile"`
}

// DisplayName prefers the real name, as the original name mapping did.
func (u User) DisplayName() string {
	if u.RealName != "" {
		return u.RealName
	}
	return u.Profile.DisplayName
}

type usersListResponse struct {
	apiResponse
	Members          []User `json:"members"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

// UsersList retrieves every workspace user, following cursor pagination.
func (c *Client) UsersList(ctx context.Context) ([]User, error) {
	var all []User
	cursor := ""

	for {
		args := map[string]interface{}{"limit": 200}
		if cursor != "" {
			args["cursor"] = cursor
		}

		var resp usersListResponse
		if err := c.call(ctx, "users.list", c.botToken, args, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Members...)

		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			return all, nil
		}
	}
}

type userInfoResponse struct {
	apiResponse
	User User `json:"user"`
}

func (c *Client) UserInfo(ctx context.Context, userID string) (*User, error) {
	var resp userInfoResponse
	if err := c.call(ctx, "users.info", c.botToken, map[string]string{"user": userID}, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// PublishHome pushes a home view for the given user.
func (c *Client) PublishHome(ctx context.Context, userID string, view View) error {
	if err := ValidateBlocks("home", view.Blocks); err != nil {
		return errors.Wrap(err, "refusing to publish invalid home view")
	}
	args := map[string]interface{}{"user_id": userID, "view": view}
	var resp apiResponse
	return c.call(ctx, "views.publish", c.botToken, args, &resp)
}

// OpenView opens a modal against an interaction trigger id.
func (c *Client) OpenView(ctx context.Context, triggerID string, view View) error {
	if err := ValidateBlocks("modal", view.Blocks); err != nil {
		return errors.Wrap(err, "refusing to open invalid modal")
	}
	args := map[string]interface{}{"trigger_id": triggerID, "view": view}
	var resp apiResponse
	return c.call(ctx, "views.open", c.botToken, args, &resp)
}

type postMessageResponse struct {
	apiResponse
	TS      string `json:"ts"`
	Channel string `json:"channel"`
}

// PostMessage sends a message and returns its timestamp.
func (c *Client) PostMessage(ctx context.Context, channel, text string, blocks []Block) (string, error) {
	if len(blocks) > 0 {
		if err := ValidateBlocks("message", blocks); err != nil {
			return "", errors.Wrap(err, "refusing to post invalid message")
		}
	}
	args := map[string]interface{}{
		"channel":      channel,
		"text":         text,
		"unfurl_links": false,
		"unfurl_media": false,
	}
	if len(blocks) > 0 {
		args["blocks"] = blocks
	}

	var resp postMessageResponse
	if err := c.call(ctx, "chat.postMessage", c.botToken, args, &resp); err != nil {
		return "", err
	}
	return resp.TS, nil
}

type conversationsOpenResponse struct {
	apiResponse
	Channel struct {
		ID string `json:"id"`
	} `json:"channel"`
}

// OpenConversation opens (or reuses) a DM channel with a user.
func (c *Client) OpenConversation(ctx context.Context, userID string) (string, error) {
	var resp conversationsOpenResponse
	if err := c.call(ctx, "conversations.open", c.botToken, map[string]string{"users": userID}, &resp); err != nil {
		return "", err
	}
	return resp.Channel.ID, nil
}

// PinMessage pins a message in a channel.
func (c *Client) PinMessage(ctx context.Context, channel, ts string) error {
	var resp apiResponse
	return c.call(ctx, "pins.add", c.botToken, map[string]string{"channel": channel, "timestamp": ts}, &resp)
}

// SendDM opens a conversation with the user and sends the message into it.
func (c *Client) SendDM(ctx context.Context, userID, text string, blocks []Block) error {
	channel, err := c.OpenConversation(ctx, userID)
	if err != nil {
		return errors.Wrapf(err, "failed to open conversation with %s", userID)
	}
	if _, err := c.PostMessage(ctx, channel, text, blocks); err != nil {
		return errors.Wrapf(err, "failed to send message to %s", userID)
	}
	return nil
}

type connectionsOpenResponse struct {
	apiResponse
	URL string `json:"url"`
}

// ConnectionsOpen requests a Socket Mode WebSocket URL. This is the one
// method authenticated with the app-level token rather than the bot token.
func (c *Client) ConnectionsOpen(ctx context.Context, appToken string) (string, error) {
	if !strings.HasPrefix(appToken, "xapp-") {
		return "", errors.New("app-level token required for apps.connections.open")
	}
	var resp connectionsOpenResponse
	if err := c.call(ctx, "apps.connections.open", appToken, nil, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}
