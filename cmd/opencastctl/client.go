package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	identityhttp "opencast/contexts/identity-access/identity-service/transport/http"
	orghttp "opencast/contexts/identity-access/organization-service/transport/http"
)

// apiClient is a thin JSON client over the platform HTTP surface. It
// refreshes the access token once on a 401 before giving up.
type apiClient struct {
	baseURL string
	http    *http.Client
	tokens  cliTokens
}

func newAPIClient(cfg cliConfig, tokens cliTokens) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
	}
}

func (c *apiClient) login(email, password string) (identityhttp.AuthResponse, error) {
	var resp identityhttp.AuthResponse
	err := c.do(http.MethodPost, "/api/auth/login", identityhttp.LoginRequest{
		Email:    email,
		Password: password,
	}, &resp, false)
	return resp, err
}

func (c *apiClient) profile() (identityhttp.UserResponse, error) {
	var resp identityhttp.UserResponse
	err := c.do(http.MethodGet, "/api/users/me", nil, &resp, true)
	return resp, err
}

func (c *apiClient) listOrganizations() (orghttp.ListOrganizationsResponse, error) {
	var resp orghttp.ListOrganizationsResponse
	err := c.do(http.MethodGet, "/api/orgs", nil, &resp, true)
	return resp, err
}

func (c *apiClient) createOrganization(req orghttp.CreateOrganizationRequest) (orghttp.OrganizationResponse, error) {
	var resp orghttp.OrganizationResponse
	err := c.do(http.MethodPost, "/api/orgs", req, &resp, true)
	return resp, err
}

func (c *apiClient) listMemberships() (orghttp.ListMembershipsResponse, error) {
	var resp orghttp.ListMembershipsResponse
	err := c.do(http.MethodGet, "/api/memberships", nil, &resp, true)
	return resp, err
}

func (c *apiClient) do(method, path string, body any, out any, authed bool) error {
	status, raw, err := c.roundTrip(method, path, body, authed)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized && authed && c.tokens.RefreshToken != "" {
		if err := c.refresh(); err != nil {
			return err
		}
		status, raw, err = c.roundTrip(method, path, body, authed)
		if err != nil {
			return err
		}
	}
	if status >= 400 {
		return apiError(status, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *apiClient) roundTrip(method, path string, body any, authed bool) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authed && c.tokens.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.tokens.AccessToken)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

func (c *apiClient) refresh() error {
	status, raw, err := c.roundTrip(http.MethodPost, "/api/auth/refresh", identityhttp.RefreshRequest{
		RefreshToken: c.tokens.RefreshToken,
	}, false)
	if err != nil {
		return err
	}
	if status >= 400 {
		return apiError(status, raw)
	}
	var pair identityhttp.TokenPairResponse
	if err := json.Unmarshal(raw, &pair); err != nil {
		return err
	}
	c.tokens.AccessToken = pair.AccessToken
	c.tokens.RefreshToken = pair.RefreshToken
	return saveTokens(c.tokens)
}

func apiError(status int, raw []byte) error {
	var envelope identityhttp.ErrorResponse
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Message != "" {
		return fmt.Errorf("%s (%d %s)", envelope.Message, status, envelope.Code)
	}
	return fmt.Errorf("request failed with status %d", status)
}
