// internal/services/registry_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/abc-portal/internship-credits/internal/config"
	"github.com/abc-portal/internship-credits/internal/utils"
)

// RegistrySubmission is the payload sent to the external academic credit registry.
type RegistrySubmission struct {
	CreditRecordID uuid.UUID `json:"credit_record_id"`
	ApplicationID  uuid.UUID `json:"application_id"`
	StudentID      string    `json:"student_registry_id"`
	InstituteID    string    `json:"institute_id,omitempty"`
	Policy         string    `json:"policy"`
	Hours          float64   `json:"hours"`
	Credits        float64   `json:"credits"`
	Title          string    `json:"title"`
	ApprovedAt     time.Time `json:"approved_at"`
}

// RegistryClient pushes approved credits and returns the registry's receipt.
type RegistryClient interface {
	Push(ctx context.Context, sub RegistrySubmission) (string, error)
}

func NewRegistryClient(cfg config.RegistryConfig) RegistryClient {
	if cfg.BaseURL == "" {
		return SimulatedRegistry{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPRegistryClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type HTTPRegistryClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type registryResponse struct {
	Receipt string `json:"receipt"`
	Error   string `json:"error,omitempty"`
}

func (c *HTTPRegistryClient) Push(ctx context.Context, sub RegistrySubmission) (string, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/credits", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build registry request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("registry request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read registry response: %w", err)
	}

	var out registryResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Error != "" {
			return "", fmt.Errorf("registry rejected submission (%d): %s", resp.StatusCode, out.Error)
		}
		return "", fmt.Errorf("registry rejected submission: status %d", resp.StatusCode)
	}
	if out.Receipt == "" {
		return "", fmt.Errorf("registry response carried no receipt")
	}
	return out.Receipt, nil
}

// SimulatedRegistry stands in for the registry when none is configured. The
// receipt is a content hash of the submission.
type SimulatedRegistry struct{}

func (SimulatedRegistry) Push(ctx context.Context, sub RegistrySubmission) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	payload, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("encode submission: %w", err)
	}
	receipt := utils.HashBytes(payload)
	logrus.WithFields(logrus.Fields{
		"credit_record_id": sub.CreditRecordID,
		"receipt":          receipt,
	}).Info("Simulated registry push")
	return receipt, nil
}
