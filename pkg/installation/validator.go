// Package installation checks an installation id/key pair against the remote
// identity service before anything is provisioned.
//
// The check fails closed: only an explicit {"Enabled": true} answer lets an
// install proceed.
package installation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cuemby/hoist/pkg/log"
	"github.com/cuemby/hoist/pkg/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the production identity service
const DefaultBaseURL = "https://api.hoist.cuemby.com"

// maxBodyBytes bounds how much of a response body is decoded
const maxBodyBytes = 1 << 20

// ParseID parses an installation id, surrounding whitespace ignored
func ParseID(input string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil, &InvalidIdentifierError{Input: input, Err: err}
	}
	return id, nil
}

// installationResponse is the only part of the identity service answer hoist
// relies on. Enabled is a pointer so that a missing field is distinguishable
// from false.
type installationResponse struct {
	Enabled *bool `json:"Enabled"`
}

// Validator queries the identity service
type Validator struct {
	BaseURL string
	Client  *http.Client
	logger  zerolog.Logger
}

// NewValidator creates a validator for baseURL; an empty baseURL selects
// DefaultBaseURL
func NewValidator(baseURL string) *Validator {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Validator{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: log.WithComponent("installation"),
	}
}

// Validate returns nil only when the service confirms id is registered and
// enabled
func (v *Validator) Validate(ctx context.Context, id uuid.UUID) error {
	err := v.validate(ctx, id)
	metrics.ValidationsTotal.WithLabelValues(outcome(err)).Inc()
	return err
}

func (v *Validator) validate(ctx context.Context, id uuid.UUID) error {
	url := fmt.Sprintf("%s/installations/%s", v.BaseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &ValidationUnavailableError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	v.logger.Debug().Str("url", url).Msg("Validating installation")

	resp, err := v.Client.Do(req)
	if err != nil {
		return &ValidationUnavailableError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &UnknownInstallationError{ID: id.String()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ValidationUnavailableError{StatusCode: resp.StatusCode}
	}

	var body installationResponse
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		return &ValidationUnavailableError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if body.Enabled == nil {
		return &ValidationUnavailableError{Err: fmt.Errorf("response has no Enabled field")}
	}
	if !*body.Enabled {
		return &DisabledInstallationError{ID: id.String()}
	}

	v.logger.Info().Str("installation_id", id.String()).Msg("Installation validated")
	return nil
}

func outcome(err error) string {
	switch err.(type) {
	case nil:
		return "enabled"
	case *DisabledInstallationError:
		return "disabled"
	case *UnknownInstallationError:
		return "unknown"
	default:
		return "unavailable"
	}
}
