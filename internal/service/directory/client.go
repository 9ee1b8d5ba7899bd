package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yhlee1627/Group-chatbot-sub000/internal/model/chat"
)

// ErrRoomNotFound is returned when the data API has no such room.
var ErrRoomNotFound = errors.New("room not found")

// Client talks to the hosted data API. The chat core only needs room
// metadata from it; auth and record management stay on the other side of
// this boundary.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the given API base URL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Room fetches metadata for one room. Consulted once per session entry.
func (c *Client) Room(ctx context.Context, roomID string) (chat.Room, error) {
	if roomID == "" {
		return chat.Room{}, errors.New("room id is required")
	}

	url := fmt.Sprintf("%s/api/rooms/%s", c.baseURL, roomID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return chat.Room{}, fmt.Errorf("build room request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return chat.Room{}, fmt.Errorf("fetch room %s: %w", roomID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return chat.Room{}, ErrRoomNotFound
	default:
		return chat.Room{}, fmt.Errorf("fetch room %s: unexpected status %d", roomID, resp.StatusCode)
	}

	var room chat.Room
	if err := json.NewDecoder(resp.Body).Decode(&room); err != nil {
		return chat.Room{}, fmt.Errorf("decode room %s: %w", roomID, err)
	}
	return room, nil
}
