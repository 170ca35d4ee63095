package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrNotArray is reported when the manifest's top-level JSON value is not an array.
var ErrNotArray = errors.New("manifest must be a JSON array")

// LoadError describes a manifest that could not be read or decoded.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load manifest %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

const maxManifestBytes = 32 << 20

var httpClient = &http.Client{Timeout: 15 * time.Second}

// IsURL reports whether source names an HTTP(S) manifest rather than a file.
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Load reads the manifest at source, a file path or an HTTP(S) URL.
// Any failure is returned as a *LoadError.
func Load(ctx context.Context, source string) (WorkingSet, error) {
	var (
		rc  io.ReadCloser
		err error
	)
	if IsURL(source) {
		rc, err = fetch(ctx, source)
	} else {
		rc, err = os.Open(source)
	}
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	defer rc.Close()
	ws, err := Decode(io.LimitReader(rc, maxManifestBytes))
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	return ws, nil
}

func fetch(ctx context.Context, source string) (io.ReadCloser, error) {
	u, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(time.Now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// Decode parses a manifest document and returns it sorted newest first.
// Filenames are reduced to plain text and URLs with unsafe schemes are dropped.
func Decode(r io.Reader) (WorkingSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return nil, errors.New("manifest is not valid JSON")
	}
	if data[0] != '[' {
		return nil, ErrNotArray
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	for i := range records {
		records[i].URL = SafeURL(records[i].URL)
	}
	return NewWorkingSet(records), nil
}
