package tidyhq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const defaultEndpoint = "https://api.tidyhq.com/v1"

// contactPageSize is the largest page TidyHQ will serve per request.
const contactPageSize = 100

// HTTPClient represents the functionality we need from an *http.Client, or
// similar.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Client is a client for the TidyHQ v1 membership API. It only covers the
// endpoints this application uses: contact and group listing, group
// membership, and contact custom-field updates.
type Client struct {
	c        HTTPClient
	endpoint string
	token    string
}

// NewClient returns a new *Client authenticating with the given access token.
// An empty endpoint selects the public TidyHQ API.
func NewClient(c HTTPClient, endpoint, token string) (*Client, error) {
	if c == nil {
		return nil, errors.New("must provide an http client")
	}
	if token == "" {
		return nil, errors.New("must provide a TidyHQ access token")
	}
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{c: c, endpoint: strings.TrimSuffix(endpoint, "/"), token: token}, nil
}

// Contact is a TidyHQ contact as returned by /contacts.
type Contact struct {
	ID           int           `json:"id"`
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
	NickName     string        `json:"nick_name"`
	CustomFields []CustomField `json:"custom_fields"`
}

// CustomField is a contact custom field. Values come back as strings for text
// fields and arrays for option fields, hence the loose typing.
type CustomField struct {
	ID    string      `json:"id"`
	Title string      `json:"title"`
	Value interface{} `json:"value"`
}

// StringValue flattens a custom field value to a string, joining option
// arrays with commas.
func (f CustomField) StringValue() string {
	switch v := f.Value.(type) {
	case string:
		return v
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ",")
	}
	return ""
}

// CustomFieldValue returns the flattened value of the custom field with the
// given id, and whether the contact has that field at all.
func (c Contact) CustomFieldValue(fieldID string) (string, bool) {
	for _, f := range c.CustomFields {
		if f.ID == fieldID {
			return f.StringValue(), true
		}
	}
	return "", false
}

// FormatName renders a contact's display name the way the app home shows it.
func (c Contact) FormatName() string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name == "" {
		name = c.NickName
	}
	if name == "" {
		name = fmt.Sprintf("Contact %d", c.ID)
	}
	return name
}

// Group is a TidyHQ contact group.
type Group struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

func (c *Client) get(ctx context.Context, path string, val url.Values, out interface{}) error {
	u := c.endpoint + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to build request for %q", u)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if len(val) > 0 {
		req.URL.RawQuery = val.Encode()
	}

	resp, err := c.c.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to make GET request to %q", u)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("GET %q unexpected status: %s", u, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode response from %q", u)
	}
	return nil
}

// Contacts retrieves every contact, walking the offset pagination.
func (c *Client) Contacts(ctx context.Context) ([]Contact, error) {
	var all []Contact

	for offset := 0; ; offset += contactPageSize {
		val := url.Values{
			"limit":  []string{strconv.Itoa(contactPageSize)},
			"offset": []string{strconv.Itoa(offset)},
		}

		var page []Contact
		if err := c.get(ctx, "/contacts", val, &page); err != nil {
			return nil, errors.Wrap(err, "failed to list contacts")
		}
		all = append(all, page...)

		if len(page) < contactPageSize {
			return all, nil
		}
	}
}

// Contact retrieves a single contact, bypassing any cache.
func (c *Client) Contact(ctx context.Context, id int) (*Contact, error) {
	var contact Contact
	if err := c.get(ctx, "/contacts/"+strconv.Itoa(id), nil, &contact); err != nil {
		return nil, errors.Wrapf(err, "failed to get contact %d", id)
	}
	return &contact, nil
}

// Groups retrieves every contact group.
func (c *Client) Groups(ctx context.Context) ([]Group, error) {
	var groups []Group
	if err := c.get(ctx, "/groups", nil, &groups); err != nil {
		return nil, errors.Wrap(err, "failed to list groups")
	}
	return groups, nil
}

// GroupContacts retrieves the contacts belonging to a group.
func (c *Client) GroupContacts(ctx context.Context, groupID int) ([]Contact, error) {
	var contacts []Contact
	if err := c.get(ctx, "/groups/"+strconv.Itoa(groupID)+"/contacts", nil, &contacts); err != nil {
		return nil, errors.Wrapf(err, "failed to list contacts for group %d", groupID)
	}
	return contacts, nil
}

// SetCustomField writes a custom field value back to a contact.
func (c *Client) SetCustomField(ctx context.Context, contactID int, fieldID, value string) error {
	u := c.endpoint + "/contacts/" + strconv.Itoa(contactID)

	body, err := json.Marshal(map[string]interface{}{
		"custom_fields": map[string]string{fieldID: value},
	})
	if err != nil {
		return errors.Wrap(err, "failed to encode custom field update")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "failed to build request for %q", u)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.c.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to make PUT request to %q", u)
	}

	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("PUT %q unexpected status: %s", u, resp.Status)
	}
	return nil
}
