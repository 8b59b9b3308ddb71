package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"net/url"
	"path/filepath"
	"slices"

	"golang.org/x/oauth2"
)

// Request describes one backend call. The body is buffered so the request
// can be replayed after a token refresh.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string

	// Auth attaches the session's bearer token and enables the
	// refresh-and-retry cycle on 401.
	Auth bool

	// Token is sent as the bearer of a public request, for credentials that
	// are not in the session yet.
	Token *oauth2.Token
}

// NewJSONRequest encodes v as the request body. A nil v sends no body.
func NewJSONRequest(method, path string, v any) (Request, error) {
	req := Request{Method: method, Path: path}
	if v == nil {
		return req, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Request{}, fmt.Errorf("encode %s %s: %w", method, path, err)
	}
	req.Body = data
	req.ContentType = "application/json"
	return req, nil
}

// FilePart is a file field of a multipart form.
type FilePart struct {
	Field  string
	Name   string
	Reader io.Reader
}

// NewMultipartRequest builds a multipart/form-data request from plain fields
// and optional files. Empty field values are skipped.
func NewMultipartRequest(method, path string, fields map[string]string, files ...FilePart) (Request, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for _, k := range slices.Sorted(maps.Keys(fields)) {
		if fields[k] == "" {
			continue
		}
		if err := mw.WriteField(k, fields[k]); err != nil {
			return Request{}, fmt.Errorf("encode form field %s: %w", k, err)
		}
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.Field, filepath.Base(f.Name))
		if err != nil {
			return Request{}, fmt.Errorf("encode form file %s: %w", f.Field, err)
		}
		if _, err := io.Copy(part, f.Reader); err != nil {
			return Request{}, fmt.Errorf("read %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return Request{}, fmt.Errorf("encode form: %w", err)
	}

	return Request{
		Method:      method,
		Path:        path,
		Body:        buf.Bytes(),
		ContentType: mw.FormDataContentType(),
	}, nil
}

// Response is a successful (2xx) backend reply.
type Response struct {
	Status    int
	Body      []byte
	RequestID string

	// Retries counts replays after a token refresh, at most 1.
	Retries int
}

// Decode unmarshals the body into v. A malformed body is a NetworkError.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &NetworkError{Op: "decode response", Err: err}
	}
	return nil
}
