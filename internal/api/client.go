// Package api wraps the backend's HTTP endpoints the game core depends on.
// The wrappers are deliberately thin: success or failure plus the created
// game's id is all the core ever reads out of a response.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/quizlink/quizlink-client/internal/session"
)

type Client struct {
	base string
	http *http.Client
	log  *zap.Logger
}

func NewClient(baseURL string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base: baseURL,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  log,
	}
}

// CreateGame registers the game on the server and returns its id.
func (c *Client) CreateGame(ctx context.Context, g session.Game) (string, error) {
	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/games", g, &out); err != nil {
		return "", fmt.Errorf("create game: %w", err)
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("create game: server returned no id")
	}
	return out.Data.ID, nil
}

// InitiateGame tells the server to start delivering questions for the game.
func (c *Client) InitiateGame(ctx context.Context, gameID string) error {
	if err := c.post(ctx, "/games/"+gameID+"/initiate", nil, nil); err != nil {
		return fmt.Errorf("initiate game: %w", err)
	}
	return nil
}

// SendInviteResponse reports the local player's accept or decline for a game
// invite. The server fans it out to the other players as a push
// notification.
func (c *Client) SendInviteResponse(ctx context.Context, gameID, playerID, action string) error {
	body := map[string]string{"action": action}
	path := "/games/game-invite-response/" + gameID + "/" + playerID
	if err := c.post(ctx, path, body, nil); err != nil {
		return fmt.Errorf("send invite response: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("path", path), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("unexpected status", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
