// Package storage is a thin HTTP client for the external media service that
// holds object documentation, delivery photos and violation evidence. All
// calls are best-effort from the caller's point of view: a failure is
// returned but never blocks the domain workflow.
package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// UploadedFile is the media service's description of a stored file.
type UploadedFile struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size,omitempty"`
}

// TreeNode is one level of the media service's folder listing.
type TreeNode struct {
	Name     string     `json:"name"`
	URL      string     `json:"url,omitempty"`
	IsDir    bool       `json:"is_dir,omitempty"`
	Children []TreeNode `json:"children,omitempty"`
}

// ObjectTree is the browse result for a construction object.
type ObjectTree struct {
	ObjectID      string   `json:"object_id"`
	Documentation TreeNode `json:"documentation"`
	Deliveries    TreeNode `json:"deliveries"`
}

// Image is a photo to upload, encoded as a data URL on the wire.
type Image struct {
	Data []byte
	Mime string // defaults to image/jpeg
}

// Client talks to the media service. Both header forms are sent because
// different deployments of the service check different ones.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// New builds a client. Timeout falls back to 30s when zero.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// UploadObjectPDF stores a PDF under the object's documentation folder.
func (c *Client) UploadObjectPDF(ctx context.Context, objectID uint, filename string, data []byte) (*UploadedFile, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename == "" {
		filename = "document.pdf"
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("storage: build multipart: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("storage: build multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("storage: build multipart: %w", err)
	}

	url := fmt.Sprintf("%s/upload/docs/object/%d", c.baseURL, objectID)
	var out UploadedFile
	if err := c.do(ctx, http.MethodPost, url, mw.FormDataContentType(), &body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadForemanVisit stores daily visit photos under the foreman's folder.
func (c *Client) UploadForemanVisit(ctx context.Context, foremanID string, images []Image, date string) (*UploadedFile, error) {
	url := fmt.Sprintf("%s/upload/foreman/visit/%s", c.baseURL, foremanID)
	return c.postPhotos(ctx, url, images, date)
}

// UploadViolationCreation stores evidence photos attached to a new violation.
// Tag distinguishes the recording service ("ssk" or "iko").
func (c *Client) UploadViolationCreation(ctx context.Context, tag string, entityID uint, images []Image, date string) (*UploadedFile, error) {
	url := fmt.Sprintf("%s/upload/violation/%s/%d/creation", c.baseURL, tag, entityID)
	return c.postPhotos(ctx, url, images, date)
}

// UploadViolationCorrection stores the foreman's remediation photos.
func (c *Client) UploadViolationCorrection(ctx context.Context, violationID uint, foremanID string, images []Image, date string) (*UploadedFile, error) {
	url := fmt.Sprintf("%s/upload/violation/%d/correction/by-foreman/%s", c.baseURL, violationID, foremanID)
	return c.postPhotos(ctx, url, images, date)
}

// UploadDeliveryPhotos stores photos of a received delivery.
func (c *Client) UploadDeliveryPhotos(ctx context.Context, objectID, deliveryID uint, images []Image, date string) (*UploadedFile, error) {
	url := fmt.Sprintf("%s/upload/delivery/%d/%d", c.baseURL, objectID, deliveryID)
	return c.postPhotos(ctx, url, images, date)
}

// BrowseObject lists the object's documentation and delivery folders.
func (c *Client) BrowseObject(ctx context.Context, objectID uint) (*ObjectTree, error) {
	url := fmt.Sprintf("%s/browse/object/%d", c.baseURL, objectID)
	var out ObjectTree
	if err := c.do(ctx, http.MethodGet, url, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BrowseForeman lists the foreman's visit photo folders.
func (c *Client) BrowseForeman(ctx context.Context, foremanID string) (*TreeNode, error) {
	url := fmt.Sprintf("%s/browse/foreman/%s", c.baseURL, foremanID)
	var out TreeNode
	if err := c.do(ctx, http.MethodGet, url, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BrowseViolation lists the evidence folders of a violation.
func (c *Client) BrowseViolation(ctx context.Context, tag string, entityID uint) (*TreeNode, error) {
	url := fmt.Sprintf("%s/browse/violation/%s/%d", c.baseURL, tag, entityID)
	var out TreeNode
	if err := c.do(ctx, http.MethodGet, url, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) postPhotos(ctx context.Context, url string, images []Image, date string) (*UploadedFile, error) {
	payload := map[string]any{"photos_base64": encodeImages(images)}
	if date != "" {
		payload["date"] = date // YYYY-MM-DD
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("storage: marshal payload: %w", err)
	}
	var out UploadedFile
	if err := c.do(ctx, http.MethodPost, url, "application/json", bytes.NewReader(raw), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, url, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("storage: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("X-API-Token", c.token)
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("storage: %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("storage: %s %s: status %d: %s", method, url, resp.StatusCode, string(snippet))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("storage: decode response: %w", err)
	}
	return nil
}

func encodeImages(images []Image) []string {
	out := make([]string, 0, len(images))
	for _, img := range images {
		mime := img.Mime
		switch mime {
		case "image/jpeg", "image/jpg", "image/png", "image/webp", "image/heic", "image/heif":
		default:
			mime = "image/jpeg"
		}
		out = append(out, "data:"+mime+";base64,"+base64.StdEncoding.EncodeToString(img.Data))
	}
	return out
}
