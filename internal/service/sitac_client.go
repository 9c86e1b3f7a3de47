package service

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

	"github.com/jjenkins/acervo/internal/model"
)

const (
	sitacTimeout        = 30 * time.Second
	sitacMaxRetries     = 3
	sitacInitialBackoff = 2 * time.Second
)

// SITACClient registers protocolos with the SITAC API
type SITACClient struct {
	client  *http.Client
	baseURL string
	token   string
	backoff time.Duration
}

// NewSITACClient creates a new SITAC API client
func NewSITACClient(baseURL, token string) *SITACClient {
	return &SITACClient{
		client:  &http.Client{Timeout: sitacTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		backoff: sitacInitialBackoff,
	}
}

// registerRequest is the body of POST /protocolos
type registerRequest struct {
	Number          string `json:"numero"`
	TaxID           string `json:"cpf_cnpj"`
	PersonType      string `json:"tipo_pessoa"`
	IssuedDate      string `json:"data_emissao"`
	StorageLocation string `json:"local_armazenamento"`
}

// registerResponse is the SITAC answer to a registration
type registerResponse struct {
	Protocol string `json:"protocolo"`
}

// errPermanent marks responses that retrying cannot fix
var errPermanent = errors.New("permanent failure")

// Register sends the protocolo to SITAC and returns the protocol number
func (c *SITACClient) Register(ctx context.Context, p *model.Protocolo) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("SITAC base URL is not configured")
	}

	personType := "F"
	if p.PersonType == model.PersonTypeOrganization {
		personType = "J"
	}
	payload, err := json.Marshal(registerRequest{
		Number:          p.Number,
		TaxID:           p.TaxID,
		PersonType:      personType,
		IssuedDate:      p.IssuedDate.Format("2006-01-02"),
		StorageLocation: p.StorageLocation,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	body, err := c.postWithRetry(ctx, c.baseURL+"/protocolos", payload)
	if err != nil {
		return "", fmt.Errorf("failed to register protocolo %s: %w", p.Number, err)
	}

	var resp registerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse SITAC response: %w", err)
	}
	ref := strings.TrimSpace(resp.Protocol)
	if ref == "" {
		return "", fmt.Errorf("SITAC response has no protocol number")
	}
	return ref, nil
}

// postWithRetry performs an HTTP POST with exponential backoff retry.
// Client errors other than 429 are not retried.
func (c *SITACClient) postWithRetry(ctx context.Context, url string, payload []byte) ([]byte, error) {
	var lastErr error
	backoff := c.backoff

	for attempt := 0; attempt < sitacMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()

		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (HTTP 429)")
			continue
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return nil, fmt.Errorf("%w: unexpected status code %d", errPermanent, resp.StatusCode)
		case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
			lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
			continue
		}

		return body, nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", sitacMaxRetries, lastErr)
}
