package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// TestContext holds per-scenario state: the last response and the ids of
// people created by name during the scenario.
type TestContext struct {
	BaseURL string

	client       *http.Client
	lastStatus   int
	lastBody     []byte
	lastLocation string
	ids          map[string]int64
}

// NewTestContext builds a context against a running server.
func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		ids:     make(map[string]int64),
	}
}

// Reset clears state between scenarios.
func (tc *TestContext) Reset() {
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.lastLocation = ""
	tc.ids = make(map[string]int64)
}

// Request sends body as JSON when it is non-nil. Placeholders of the form
// {name} in path are replaced with remembered ids.
func (tc *TestContext) Request(method, path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	return tc.do(method, path, reader)
}

// RequestRaw sends body verbatim as JSON.
func (tc *TestContext) RequestRaw(method, path, body string) error {
	return tc.do(method, path, strings.NewReader(body))
}

func (tc *TestContext) do(method, path string, body io.Reader) error {
	req, err := http.NewRequest(method, tc.BaseURL+tc.Expand(path), body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	tc.lastStatus = resp.StatusCode
	tc.lastLocation = resp.Header.Get("Location")
	return nil
}

// Expand substitutes remembered ids into path.
func (tc *TestContext) Expand(path string) string {
	for name, id := range tc.ids {
		path = strings.ReplaceAll(path, "{"+name+"}", strconv.FormatInt(id, 10))
	}
	return path
}

func (tc *TestContext) StatusCode() int {
	return tc.lastStatus
}

func (tc *TestContext) Body() []byte {
	return tc.lastBody
}

func (tc *TestContext) Location() string {
	return tc.lastLocation
}

// DecodeResponse unmarshals the last response body into v.
func (tc *TestContext) DecodeResponse(v interface{}) error {
	if err := json.Unmarshal(tc.lastBody, v); err != nil {
		return fmt.Errorf("decode response %q: %w", string(tc.lastBody), err)
	}
	return nil
}

// GetResponseField reads a top-level field from a JSON object response.
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var obj map[string]interface{}
	if err := tc.DecodeResponse(&obj); err != nil {
		return nil, err
	}
	v, ok := obj[field]
	if !ok {
		return nil, fmt.Errorf("response has no field %q", field)
	}
	return v, nil
}

func (tc *TestContext) Remember(name string, id int64) {
	tc.ids[name] = id
}

func (tc *TestContext) Recall(name string) (int64, error) {
	id, ok := tc.ids[name]
	if !ok {
		return 0, fmt.Errorf("no person remembered as %q", name)
	}
	return id, nil
}
