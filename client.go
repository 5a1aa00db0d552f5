package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type (
	Response struct {
		Success bool   `json:"success"`
		Code    string `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Data    any    `json:"data,omitempty"`
	}

	EntriesResponse struct {
		Total   int     `json:"total"`
		Entries []Entry `json:"entries"`
	}
)

// APIClient talks to another process running `kalender serve`.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// fetches entries, only upcoming ones unless all is set
func (c *APIClient) GetEntries(all bool) ([]Entry, error) {
	path := "/api/entries"
	if all {
		path += "?all=true"
	}

	var res EntriesResponse
	if err := c.do(http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res.Entries, nil
}

// creates one entry, or several when in.Repeat is set
func (c *APIClient) CreateEntry(in EntryInput) ([]Entry, error) {
	var res EntriesResponse
	if err := c.do(http.MethodPost, "/api/entries", in, &res); err != nil {
		return nil, err
	}
	return res.Entries, nil
}

// APIError is returned when the server answered with success=false.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// sends a request and decodes the data field of the envelope into out
func (c *APIClient) do(method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error encoding request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %w", err)
	}
	defer res.Body.Close()

	var envelope struct {
		Success bool            `json:"success"`
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("error decoding response (status %d): %w", res.StatusCode, err)
	}

	if res.StatusCode >= 400 || !envelope.Success {
		return &APIError{Status: res.StatusCode, Code: envelope.Code, Message: envelope.Message}
	}

	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("error decoding response data: %w", err)
	}
	return nil
}
