// Package discovery implements the REST Discovery Client: the vendor
// cloud API calls that turn an account's email/password into a
// Credential Store and a Topology, per spec.md 4.1.
package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cyncmesh/cync-core/internal/credentials"
)

const (
	defaultBaseURL = "https://api.gelighting.com"
	corpID         = "1007d2ad150c4000"
	twoFactorLang  = "en-us"
	twoFactorRsrc  = "abcdefghijklmnop"

	defaultTimeout = 10 * time.Second
)

// Client performs the vendor REST auth/2FA/topology-fetch calls.
//
// Thread Safety: Client holds no mutable state besides the cached
// email/password needed to resubmit a two-factor code, and is safe for
// sequential use by the bootstrap sequence that owns it.
type Client struct {
	baseURL    string
	httpClient *http.Client

	email    string
	password string
}

// New builds a discovery Client for the given account credentials.
func New(email, password string) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		email:      email,
		password:   password,
	}
}

// Authenticate posts to /v2/user_auth. A 200 response yields a populated
// Store; a 400 response requests an email 2FA code and returns
// ErrTwoFactorRequired so the caller can prompt for the code and call
// SubmitTwoFactor; any other non-2xx status is ErrInvalidAuth.
func (c *Client) Authenticate(ctx context.Context) (credentials.Store, error) {
	body := authRequest{CorpID: corpID, Email: c.email, Password: c.password}

	resp, status, err := c.post(ctx, "/v2/user_auth", body)
	if err != nil {
		return credentials.Store{}, err
	}

	switch status {
	case http.StatusOK:
		var out authResponse
		if err := json.Unmarshal(resp, &out); err != nil {
			return credentials.Store{}, fmt.Errorf("%w: decoding auth response: %w", ErrTransport, err)
		}
		return credentials.New(out.UserID, out.Authorize, out.AccessToken), nil

	case http.StatusBadRequest:
		if err := c.requestTwoFactorCode(ctx); err != nil {
			return credentials.Store{}, err
		}
		return credentials.Store{}, ErrTwoFactorRequired

	default:
		return credentials.Store{}, ErrInvalidAuth
	}
}

// requestTwoFactorCode asks the vendor API to email a 2FA code.
func (c *Client) requestTwoFactorCode(ctx context.Context) error {
	body := twoFactorCodeRequest{CorpID: corpID, Email: c.email, LocalLang: twoFactorLang}
	_, status, err := c.post(ctx, "/v2/two_factor/email/verifycode", body)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: requesting two-factor code: status %d", ErrTransport, status)
	}
	return nil
}

// SubmitTwoFactor completes authentication with an emailed 2FA code.
func (c *Client) SubmitTwoFactor(ctx context.Context, code string) (credentials.Store, error) {
	body := twoFactorAuthRequest{
		CorpID:    corpID,
		Email:     c.email,
		Password:  c.password,
		TwoFactor: code,
		Resource:  twoFactorRsrc,
	}

	resp, status, err := c.post(ctx, "/v2/user_auth/two_factor", body)
	if err != nil {
		return credentials.Store{}, err
	}
	if status != http.StatusOK {
		return credentials.Store{}, ErrInvalidAuth
	}

	var out authResponse
	if err := json.Unmarshal(resp, &out); err != nil {
		return credentials.Store{}, fmt.Errorf("%w: decoding two-factor response: %w", ErrTransport, err)
	}
	return credentials.New(out.UserID, out.Authorize, out.AccessToken), nil
}

// post JSON-encodes body, POSTs it to path, and returns the raw response
// bytes and status code.
func (c *Client) post(ctx context.Context, path string, body any) ([]byte, int, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: encoding request: %w", ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: building request: %w", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading response: %w", ErrTransport, err)
	}
	return data, resp.StatusCode, nil
}

// get issues an authenticated GET and returns the raw response bytes.
func (c *Client) get(ctx context.Context, path, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrTransport, err)
	}
	req.Header.Set("Access-Token", accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s: status %d", ErrTransport, path, resp.StatusCode)
	}
	return data, nil
}
