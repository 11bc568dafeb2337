package publish

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const payloadVersion = "1.0"

// Uploader transmits a stored photo's bytes out of band. The caller does
// not wait for any server-side processing beyond the request itself.
type Uploader interface {
	Upload(ctx context.Context, name string, content io.Reader) error
}

// HTTPUploader posts photos to the upload endpoint as a JSON envelope with
// base64 content.
type HTTPUploader struct {
	client   *http.Client
	endpoint string
	deviceID string
}

func NewHTTPUploader(endpoint, deviceID string, timeout time.Duration) *HTTPUploader {
	return &HTTPUploader{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		deviceID: deviceID,
	}
}

type uploadEnvelope struct {
	Version  string `json:"version"`
	Filename string `json:"filename"`
	Content  string `json:"content"`
	DeviceID string `json:"device_id"`
}

func (u *HTTPUploader) Upload(ctx context.Context, name string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return fmt.Errorf("read upload content: %w", err)
	}

	body, err := json.Marshal(uploadEnvelope{
		Version:  payloadVersion,
		Filename: name,
		Content:  base64.StdEncoding.EncodeToString(data),
		DeviceID: u.deviceID,
	})
	if err != nil {
		return fmt.Errorf("encode upload envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", u.endpoint, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upload endpoint returned %s", resp.Status)
	}
	return nil
}
