package clients

import (
	"auth_service/internal/domain"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	_ domain.AuthBackend  = (*SupabaseClient)(nil)
	_ domain.ProfileStore = (*SupabaseClient)(nil)
)

// SupabaseClient talks to a Supabase compatible service: GoTrue under
// /auth/v1 and PostgREST under /rest/v1.
type SupabaseClient struct {
	baseURL string
	anonKey string
	client  *http.Client
	log     *logrus.Logger
}

func NewSupabaseClient(baseURL, anonKey string, timeout time.Duration, logger *logrus.Logger) *SupabaseClient {
	return &SupabaseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		client: &http.Client{
			Timeout: timeout,
		},
		log: logger,
	}
}

// errorBody covers both GoTrue and PostgREST error payloads.
type errorBody struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func (b errorBody) backendError(status int) *domain.BackendError {
	be := &domain.BackendError{Status: status, Code: b.ErrorCode}
	if be.Code == "" && len(b.Code) > 0 {
		var code string
		if err := json.Unmarshal(b.Code, &code); err == nil {
			be.Code = code
		}
	}
	if be.Code == "" && b.ErrorDescription != "" {
		be.Code = b.Error
	}
	switch {
	case b.Msg != "":
		be.Message = b.Msg
	case b.Message != "":
		be.Message = b.Message
	case b.ErrorDescription != "":
		be.Message = b.ErrorDescription
	case b.Error != "":
		be.Message = b.Error
	default:
		be.Message = http.StatusText(status)
	}
	be.Err = classify(status, be.Code)
	return be
}

func classify(status int, code string) error {
	switch code {
	case "invalid_credentials", "invalid_grant":
		return domain.ErrInvalidCredentials
	case "user_already_exists", "email_exists", "23505":
		return domain.ErrAlreadyExists
	case singleRowCode:
		return domain.ErrNotFound
	}
	if status == http.StatusNotAcceptable || status == http.StatusNotFound {
		return domain.ErrNotFound
	}
	return nil
}

// do sends a JSON request and decodes a 2xx JSON response into out, if set.
// Non 2xx responses are returned as *domain.BackendError.
func (c *SupabaseClient) do(ctx context.Context, method, path string, query url.Values, body any, headers map[string]string, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create backend request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	bearer := c.anonKey
	if token, ok := domain.AccessTokenFromContext(ctx); ok {
		bearer = token
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	c.log.Debugf("SupabaseClient: %s %s", method, path)
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Errorf("SupabaseClient: Failed to execute %s %s: %v", method, path, err)
		return fmt.Errorf("failed to communicate with backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var eb errorBody
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &eb); err != nil {
				c.log.Warnf("SupabaseClient: Undecodable error body for %s %s: %s", method, path, string(raw))
			}
		}
		be := eb.backendError(resp.StatusCode)
		c.log.Warnf("SupabaseClient: %s %s failed with status %d: %s", method, path, resp.StatusCode, be.Message)
		return be
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		c.log.Errorf("SupabaseClient: Failed to decode response of %s %s: %v", method, path, err)
		return fmt.Errorf("failed to decode backend response: %w", err)
	}
	return nil
}
