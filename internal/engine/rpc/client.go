package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/offloadhq/offload-client/internal/catalog"
	"github.com/offloadhq/offload-client/internal/engine"
	"github.com/offloadhq/offload-client/internal/logctx"
)

const (
	requestTimeout = 10 * time.Second

	// Progress events can be sparse while the engine waits on the remote
	// server, so the event stream line buffer stays modest.
	maxEventLine = 256 * 1024
)

// Client talks JSON over HTTP to the local engine daemon. Request/response
// calls use a bounded timeout; the progress event stream does not.
type Client struct {
	BaseURL      string
	httpClient   *http.Client
	streamClient *http.Client
}

var _ engine.Engine = (*Client)(nil)

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: requestTimeout},
		streamClient: &http.Client{},
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) (int, error) {
	var body io.Reader

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}

		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		return resp.StatusCode, fmt.Errorf("engine returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

// Login authenticates the engine against the remote server, then fetches the
// exported master key. A server that refuses key export is a distinct failure
// from bad credentials.
func (c *Client) Login(ctx context.Context, serverURL, username, password string) (string, error) {
	payload := map[string]string{
		"serverUrl": serverURL,
		"username":  username,
		"password":  password,
	}

	if _, err := c.do(ctx, http.MethodPost, "/api/auth/login", payload, nil); err != nil {
		return "", &engine.AuthError{ServerURL: serverURL, Err: err}
	}

	var result struct {
		MasterKey string `json:"masterKey"`
	}

	status, err := c.do(ctx, http.MethodGet, "/api/auth/master-key", nil, &result)
	if err != nil {
		return "", &engine.MasterKeyError{StatusCode: status, Err: err}
	}

	if result.MasterKey == "" {
		return "", &engine.MasterKeyError{StatusCode: status}
	}

	return result.MasterKey, nil
}

func (c *Client) ListFolders(ctx context.Context) ([]catalog.Folder, error) {
	var folders []catalog.Folder

	if _, err := c.do(ctx, http.MethodGet, "/api/folders", nil, &folders); err != nil {
		return nil, &engine.CatalogLoadError{Collection: "folders", Err: err}
	}

	return folders, nil
}

func (c *Client) ListArchives(ctx context.Context) ([]catalog.Archive, error) {
	var archives []catalog.Archive

	if _, err := c.do(ctx, http.MethodGet, "/api/archives", nil, &archives); err != nil {
		return nil, &engine.CatalogLoadError{Collection: "archives", Err: err}
	}

	return archives, nil
}

func (c *Client) StartItemDownload(ctx context.Context, itemID, destinationDir string, subFileIndex *int) (string, error) {
	payload := map[string]any{"destinationDir": destinationDir}
	if subFileIndex != nil {
		payload["fileIndex"] = *subFileIndex
	}

	var result struct {
		ID string `json:"id"`
	}

	if _, err := c.do(ctx, http.MethodPost, "/api/archives/"+itemID+"/download", payload, &result); err != nil {
		return "", &engine.DownloadStartError{ItemID: itemID, Err: err}
	}

	return result.ID, nil
}

func (c *Client) StartFolderDownload(ctx context.Context, folderID, folderName, destinationDir string) (string, error) {
	payload := map[string]any{
		"folderName":     folderName,
		"destinationDir": destinationDir,
	}

	var result struct {
		ID string `json:"id"`
	}

	if _, err := c.do(ctx, http.MethodPost, "/api/folders/"+folderID+"/download", payload, &result); err != nil {
		return "", &engine.DownloadStartError{ItemID: folderID, Err: err}
	}

	return result.ID, nil
}

func (c *Client) PauseDownload(ctx context.Context, id string) error {
	if _, err := c.do(ctx, http.MethodPost, "/api/downloads/"+id+"/pause", nil, nil); err != nil {
		return fmt.Errorf("failed to request pause for %s: %w", id, err)
	}

	return nil
}

func (c *Client) DeletePath(ctx context.Context, path string) error {
	payload := map[string]string{"path": path}

	if _, err := c.do(ctx, http.MethodPost, "/api/fs/delete", payload, nil); err != nil {
		return &engine.FileOperationError{Operation: "delete", Path: path, Err: err}
	}

	return nil
}

func (c *Client) OpenPath(ctx context.Context, path string) error {
	payload := map[string]string{"path": path}

	if _, err := c.do(ctx, http.MethodPost, "/api/fs/open", payload, nil); err != nil {
		return &engine.FileOperationError{Operation: "open", Path: path, Err: err}
	}

	return nil
}

// Log forwards a diagnostic line to the engine's log sink. Failures are
// swallowed: the sink is advisory.
func (c *Client) Log(ctx context.Context, level, message string) {
	payload := map[string]string{"level": level, "message": message}

	_, _ = c.do(ctx, http.MethodPost, "/api/log", payload, nil)
}

// Events opens the engine's progress stream and delivers events in arrival
// order until the stream ends or ctx is cancelled. The returned channel is
// closed when the stream terminates; callers decide whether to reconnect.
func (c *Client) Events(ctx context.Context) (<-chan engine.ProgressEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/events", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create event stream request: %w", err)
	}

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open event stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()

		return nil, fmt.Errorf("event stream returned %d", resp.StatusCode)
	}

	events := make(chan engine.ProgressEvent)

	go func() {
		defer close(events)
		defer resp.Body.Close()

		logger := logctx.LoggerFromContext(ctx)

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 4096), maxEventLine)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var ev engine.ProgressEvent
			if err := json.Unmarshal(line, &ev); err != nil {
				logger.Warn("dropping malformed progress event", "err", err)

				continue
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			logger.Warn("event stream closed", "err", err)
		}
	}()

	return events, nil
}
