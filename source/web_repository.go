package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sardine-ai/go-widget-config/model"
	"github.com/sirupsen/logrus"
)

// WebRepository is a struct that implements the Repository interface for
// configuration blobs held by a remote widget configuration server, using
// its /blobs/{channel} endpoints.
type WebRepository struct {
	Name   string       // Name of the configuration source
	URL    *url.URL     // Base URL of the remote server
	APIKey string       // Optional API key for X-API-Key header authentication
	Client *http.Client // HTTP client, http.DefaultClient when nil
}

// NewWebRepository creates a WebRepository for the server at rawURL.
func NewWebRepository(name, rawURL string) (*WebRepository, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}
	return &WebRepository{Name: name, URL: parsed}, nil
}

// GetName returns the name of the configuration source.
func (w *WebRepository) GetName() string {
	return w.Name
}

func (w *WebRepository) Read(ctx context.Context, channel model.Channel) (string, error) {
	resp, err := w.do(ctx, http.MethodGet, channel, nil)
	if err != nil {
		return "", err
	}
	defer closeBody(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: unexpected status %s", channel, resp.Status)
	}

	// Read the blob from the response body.
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		logrus.Debug("error reading response body")
		return "", err
	}
	return string(data), nil
}

func (w *WebRepository) Write(ctx context.Context, channel model.Channel, blob string) error {
	resp, err := w.do(ctx, http.MethodPut, channel, strings.NewReader(blob))
	if err != nil {
		return err
	}
	defer closeBody(resp.Body)
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("PUT %s: unexpected status %s", channel, resp.Status)
	}
	return nil
}

func (w *WebRepository) Delete(ctx context.Context, channel model.Channel) error {
	resp, err := w.do(ctx, http.MethodDelete, channel, nil)
	if err != nil {
		return err
	}
	defer closeBody(resp.Body)
	if resp.StatusCode >= http.StatusMultipleChoices && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("DELETE %s: unexpected status %s", channel, resp.Status)
	}
	return nil
}

func (w *WebRepository) do(ctx context.Context, method string, channel model.Channel, body io.Reader) (*http.Response, error) {
	target := w.URL.JoinPath("blobs", channel.Key())
	request, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		logrus.Debug("error creating request")
		return nil, err
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	// Set X-API-Key header if API key is configured
	if w.APIKey != "" {
		request.Header.Set("X-API-Key", w.APIKey)
	}

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(request)
	if err != nil {
		logrus.Debug("error doing request")
		return nil, err
	}
	return resp, nil
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		logrus.WithError(err).Debug("error closing response body")
	}
}
