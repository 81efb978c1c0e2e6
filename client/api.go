package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"mazegate/mazeimg"
	"mazegate/store"
)

type SessionSnapshot struct {
	ID            string  `json:"id"`
	State         string  `json:"state"`
	Status        string  `json:"status"`
	AvatarX       float64 `json:"avatar_x"`
	AvatarY       float64 `json:"avatar_y"`
	CaptchaOK     string  `json:"captcha_ok"`
	DisplayWidth  float64 `json:"display_width"`
	DisplayHeight float64 `json:"display_height"`
}

type PointerRequest struct {
	Type          string  `json:"type"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	DisplayWidth  float64 `json:"display_width,omitempty"`
	DisplayHeight float64 `json:"display_height,omitempty"`
}

type StatsResponse struct {
	LiveSessions int          `json:"live_sessions"`
	Runs         *store.Stats `json:"runs,omitempty"`
}

// apiClient talks to a mazegate-server.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error connecting to server: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("server error: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

func (c *apiClient) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	return nil
}

// FetchMaze downloads the bitmap and the zone layout the widget needs.
func (c *apiClient) FetchMaze(ctx context.Context) (image.Image, mazeimg.Layout, error) {
	var layout mazeimg.Layout
	if err := c.doJSON(ctx, "GET", "/layout", nil, &layout); err != nil {
		return nil, layout, err
	}

	resp, err := c.do(ctx, "GET", "/maze.png", nil)
	if err != nil {
		return nil, layout, err
	}
	defer resp.Body.Close()

	img, err := mazeimg.Decode(resp.Body)
	if err != nil {
		return nil, layout, err
	}
	return img, layout, nil
}

// RenderPNG asks the server for the encoded maze bitmap.
func (c *apiClient) RenderPNG(ctx context.Context) ([]byte, error) {
	resp, err := c.do(ctx, "POST", "/render", struct{}{})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *apiClient) CreateSession(ctx context.Context, width, height float64) (*SessionSnapshot, error) {
	var snap SessionSnapshot
	body := map[string]float64{"display_width": width, "display_height": height}
	if err := c.doJSON(ctx, "POST", "/sessions", body, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *apiClient) Session(ctx context.Context, id string) (*SessionSnapshot, error) {
	var snap SessionSnapshot
	if err := c.doJSON(ctx, "GET", "/sessions/"+id, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *apiClient) Pointer(ctx context.Context, id string, req PointerRequest) (*SessionSnapshot, error) {
	var snap SessionSnapshot
	if err := c.doJSON(ctx, "POST", "/sessions/"+id+"/pointer", req, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *apiClient) History(ctx context.Context, id string) ([]store.RunEvent, error) {
	var events []store.RunEvent
	if err := c.doJSON(ctx, "GET", "/sessions/"+id+"/history", nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *apiClient) Stats(ctx context.Context) (*StatsResponse, error) {
	var stats StatsResponse
	if err := c.doJSON(ctx, "GET", "/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
