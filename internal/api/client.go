// Package api talks to the leaderboard server ghost runs are uploaded to.
package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pitlane/kart/pkg/core"
)

// Client handles communication with the leaderboard server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the leaderboard server is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + "/healthcheck")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Upload sends an exported ghost file to the leaderboard server.
func (c *Client) Upload(filePath string, meta core.UploadMetadata) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	// The form is streamed so large ghost files are never held in memory.
	errCh := make(chan error, 1)
	go func() {
		errCh <- writeForm(writer, file, filepath.Base(filePath), c.apiKey, meta)
		pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/v1/ghosts/add", pr)
	if err != nil {
		pr.Close()
		<-errCh
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	// unblocks the writer if the server stopped reading early
	pr.Close()
	writeErr := <-errCh
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload returned status %d", resp.StatusCode)
	}
	if writeErr != nil {
		return writeErr
	}
	return nil
}

func writeForm(w *multipart.Writer, file io.Reader, filename, secret string, meta core.UploadMetadata) error {
	fields := [][2]string{
		{"secret", secret},
		{"filename", filename},
		{"runId", meta.RunID},
		{"course", meta.CourseName},
		{"duration", strconv.FormatFloat(meta.Duration, 'f', 3, 64)},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to copy file: %w", err)
	}
	return nil
}
