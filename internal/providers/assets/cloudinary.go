package assets

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CloudinaryOptions controls how the Cloudinary client is configured.
type CloudinaryOptions struct {
	CloudName  string
	APIKey     string
	APISecret  string
	BaseURL    string
	HTTPClient *http.Client
}

// Cloudinary uploads images through the Cloudinary image upload API using
// signed data-URI payloads.
type Cloudinary struct {
	cloudName string
	apiKey    string
	apiSecret string
	baseURL   string
	client    *http.Client
	now       func() time.Time
}

const cloudinaryDefaultTimeout = 60 * time.Second

type cloudinaryUploadResponse struct {
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	Error     struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewCloudinary constructs a Cloudinary uploader.
func NewCloudinary(opts CloudinaryOptions) (*Cloudinary, error) {
	if strings.TrimSpace(opts.CloudName) == "" {
		return nil, errors.New("cloudinary cloud name is required")
	}
	if strings.TrimSpace(opts.APIKey) == "" || strings.TrimSpace(opts.APISecret) == "" {
		return nil, errors.New("cloudinary api credentials are required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.cloudinary.com"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cloudinaryDefaultTimeout}
	}
	return &Cloudinary{
		cloudName: strings.TrimSpace(opts.CloudName),
		apiKey:    strings.TrimSpace(opts.APIKey),
		apiSecret: strings.TrimSpace(opts.APISecret),
		baseURL:   baseURL,
		client:    client,
		now:       time.Now,
	}, nil
}

// Upload encodes the bytes as a data URI and posts them to the image upload
// endpoint. Returns the secure URL of the stored asset.
func (c *Cloudinary) Upload(ctx context.Context, data []byte, mimeType, folder string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("cloudinary: empty payload")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	dataURI := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
	timestamp := strconv.FormatInt(c.now().Unix(), 10)

	form := url.Values{}
	form.Set("file", dataURI)
	form.Set("folder", folder)
	form.Set("timestamp", timestamp)
	form.Set("api_key", c.apiKey)
	form.Set("signature", c.sign(folder, timestamp))

	endpoint := fmt.Sprintf("%s/v1_1/%s/image/upload", c.baseURL, url.PathEscape(c.cloudName))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("cloudinary: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("cloudinary: upload: %w", err)
	}
	defer resp.Body.Close()

	var out cloudinaryUploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("cloudinary: decode response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if out.Error.Message != "" {
			return "", fmt.Errorf("cloudinary: status %d: %s", resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("cloudinary: status %d", resp.StatusCode)
	}
	if out.SecureURL == "" {
		if out.URL != "" {
			return out.URL, nil
		}
		return "", errors.New("cloudinary: response missing secure_url")
	}
	return out.SecureURL, nil
}

// sign produces the Cloudinary request signature: SHA-1 over the sorted
// non-credential parameters concatenated with the API secret.
func (c *Cloudinary) sign(folder, timestamp string) string {
	toSign := fmt.Sprintf("folder=%s&timestamp=%s%s", folder, timestamp, c.apiSecret)
	sum := sha1.Sum([]byte(toSign))
	return hex.EncodeToString(sum[:])
}

var _ Uploader = (*Cloudinary)(nil)
