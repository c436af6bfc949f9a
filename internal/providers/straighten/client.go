package straighten

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SubmissionState tags the outcome of a correction submission. The service
// branches on this tag instead of treating submission failures as errors:
// a declined submission simply routes the job onto the direct-edit fallback.
type SubmissionState string

const (
	SubmissionAccepted SubmissionState = "accepted"
	SubmissionDeclined SubmissionState = "declined"
)

// Submission is the result of handing a job to the correction service.
type Submission struct {
	State  SubmissionState
	Reason string
}

// Accepted reports whether the collaborator took ownership of the job and
// will deliver a webhook callback.
func (s Submission) Accepted() bool {
	return s.State == SubmissionAccepted
}

// Submitter hands an image to the perspective-correction collaborator.
type Submitter interface {
	Submit(ctx context.Context, imageURL, requestID string) Submission
}

// ClientOptions configures the correction service client.
type ClientOptions struct {
	APIKey     string
	URL        string
	WebhookURL string
	Option     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client submits correction requests to a SHIFT-N style straightening
// service. The service works asynchronously: an accepted submission is later
// followed by a webhook POST carrying the corrected image.
type Client struct {
	apiKey     string
	url        string
	webhookURL string
	option     string
	client     *http.Client
}

const (
	defaultTimeout = 60 * time.Second
	defaultOption  = "A2"
)

type submitRequest struct {
	ImageURL   string `json:"imageUrl"`
	Option     string `json:"option"`
	RequestID  string `json:"requestId"`
	WebhookURL string `json:"webhookUrl"`
}

// NewClient constructs a correction client.
func NewClient(opts ClientOptions) (*Client, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, errors.New("straighten: service url is required")
	}
	if strings.TrimSpace(opts.WebhookURL) == "" {
		return nil, errors.New("straighten: webhook url is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	option := strings.TrimSpace(opts.Option)
	if option == "" {
		option = defaultOption
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		url:        strings.TrimSpace(opts.URL),
		webhookURL: strings.TrimSpace(opts.WebhookURL),
		option:     option,
		client:     client,
	}, nil
}

// Submit offers the image at imageURL to the correction service. Any failure
// to hand the job over (network error, non-2xx response, timeout) is reported
// as a declined submission, never as an error: the collaborator that never
// accepted a job will never call back for it.
func (c *Client) Submit(ctx context.Context, imageURL, requestID string) Submission {
	payload := submitRequest{
		ImageURL:   imageURL,
		Option:     c.option,
		RequestID:  requestID,
		WebhookURL: c.webhookURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return declined(fmt.Sprintf("encode request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return declined(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return declined(fmt.Sprintf("http request: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		detail := strings.TrimSpace(string(data))
		if detail == "" {
			detail = resp.Status
		}
		return declined(fmt.Sprintf("status %d: %s", resp.StatusCode, detail))
	}

	return Submission{State: SubmissionAccepted}
}

func declined(reason string) Submission {
	return Submission{State: SubmissionDeclined, Reason: reason}
}

var _ Submitter = (*Client)(nil)
