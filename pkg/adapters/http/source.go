package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aretw0/waypoint/pkg/domain"
)

// Source fetches experiences from the content API:
//
//	GET {base}/experiences/{id}?published=true|false
type Source struct {
	base   *url.URL
	client *http.Client
	token  func() string
}

// SourceOption configures the Source.
type SourceOption func(*Source)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) SourceOption {
	return func(s *Source) {
		s.client = c
	}
}

// WithBearerToken sends an Authorization header on every request.
func WithBearerToken(token func() string) SourceOption {
	return func(s *Source) {
		s.token = token
	}
}

// NewSource creates a source rooted at baseURL.
func NewSource(baseURL string, opts ...SourceOption) (*Source, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api url scheme %q", u.Scheme)
	}
	s := &Source{
		base:   u,
		client: &http.Client{Timeout: 10 * time.Second},
		token:  func() string { return "" },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Fetch implements ports.ExperienceSource.
func (s *Source) Fetch(ctx context.Context, id string, published bool) (*domain.Experience, error) {
	u := s.base.JoinPath("experiences", id)
	q := u.Query()
	q.Set("published", strconv.FormatBool(published))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if token := s.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch experience: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", domain.ErrExperienceNotFound, id)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("content api returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read experience: %w", err)
	}
	return domain.DecodeExperience(body)
}
