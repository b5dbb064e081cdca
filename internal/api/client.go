// Package api is the HTTP client for the liver segmentation backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/liverscope/internal/logger"
)

// UserHeader carries the opaque user id on every request.
const UserHeader = "X-User"

// Export formats accepted by the backend.
const (
	FormatSTL = "stl"
	FormatPLY = "ply"
)

// ErrUnsupportedFormat is returned for export formats other than stl and ply.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Error is a non-2xx response. Message holds the server's detail text.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client talks to one backend on behalf of one user. It is safe for
// concurrent use.
type Client struct {
	base   *url.URL
	userID string
	http   *http.Client
	log    *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a client for baseURL.
func New(baseURL, userID string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base:   u,
		userID: userID,
		http:   &http.Client{Timeout: 120 * time.Second},
		log:    logger.Named("api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Health checks backend liveness.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.getJSON(ctx, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListFiles returns the files uploaded so far.
func (c *Client) ListFiles(ctx context.Context) ([]FileInfo, error) {
	var out []FileInfo
	if err := c.getJSON(ctx, "/files/list", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadFile uploads a single image or DICOM file.
func (c *Client) UploadFile(ctx context.Context, filePath string) (*FileUpload, error) {
	var out FileUpload
	if err := c.upload(ctx, "/files/upload", filePath, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadSeries uploads a zip archive of DICOM slices. The backend
// segments and reconstructs the volume in the same request.
func (c *Client) UploadSeries(ctx context.Context, archivePath string) (*SeriesUpload, error) {
	var out SeriesUpload
	if err := c.upload(ctx, "/zip/upload-series", archivePath, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DicomInfo fetches the header fields and pixel statistics of an uploaded
// DICOM file.
func (c *Client) DicomInfo(ctx context.Context, filename string) (*DicomInfo, error) {
	var out DicomInfo
	if err := c.getJSON(ctx, "/dicom/info/"+url.PathEscape(filename), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DicomPreview downloads a normalized PNG rendering of an uploaded DICOM file.
func (c *Client) DicomPreview(ctx context.Context, filename string) (*Blob, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/dicom/preview/"+url.PathEscape(filename), nil, nil)
	if err != nil {
		return nil, err
	}
	blob, err := c.fetch(req)
	if err != nil {
		return nil, err
	}
	if blob.Filename == "" {
		blob.Filename = PreviewName(filename)
	}
	return blob, nil
}

// PreviewName is the local file name for the preview of filename.
func PreviewName(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + "_preview.png"
}

// SegmentSlice runs 2D segmentation on an uploaded file.
func (c *Client) SegmentSlice(ctx context.Context, filename string) (*SliceSegmentation, error) {
	var out SliceSegmentation
	if err := c.postJSON(ctx, "/segmentation/slice/"+url.PathEscape(filename), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SegmentSeries runs per-slice segmentation on an uploaded series.
func (c *Client) SegmentSeries(ctx context.Context, seriesID string) (*SeriesSegmentation, error) {
	var out SeriesSegmentation
	if err := c.postJSON(ctx, "/segmentation/series/"+url.PathEscape(seriesID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Reconstruct requests a 3D model for an uploaded file.
func (c *Client) Reconstruct(ctx context.Context, filename string) (*ReconstructionResult, error) {
	var out ReconstructionResult
	if err := c.postJSON(ctx, "/reconstruction/3d/"+url.PathEscape(filename), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Metrics fetches the volumetric metrics of a reconstruction.
func (c *Client) Metrics(ctx context.Context, filename string) (*MetricsResult, error) {
	var out MetricsResult
	if err := c.getJSON(ctx, "/reconstruction/metrics/"+url.PathEscape(filename), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Export downloads the reconstructed model of filename in format.
func (c *Client) Export(ctx context.Context, filename, format string) (*Blob, error) {
	if format != FormatSTL && format != FormatPLY {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	q := url.Values{"format": {format}}
	req, err := c.newRequest(ctx, http.MethodGet, "/reconstruction/export/"+url.PathEscape(filename), q, nil)
	if err != nil {
		return nil, err
	}
	blob, err := c.fetch(req)
	if err != nil {
		return nil, err
	}
	if blob.Filename == "" {
		blob.Filename = ExportName(filename, format)
	}
	return blob, nil
}

// ExportName is the file name the backend gives an exported model.
func ExportName(filename, format string) string {
	return fmt.Sprintf("liver_model_%s.%s", filename, format)
}

// Download fetches a mesh from a retrieval location. Relative locations
// resolve against the base URL.
func (c *Client) Download(ctx context.Context, location string) ([]byte, error) {
	ref, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parsing location: %w", err)
	}
	target := c.base.ResolveReference(ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	c.decorate(req)
	blob, err := c.fetch(req)
	if err != nil {
		return nil, err
	}
	return blob.Data, nil
}

func (c *Client) getJSON(ctx context.Context, p string, q url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, p, q, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

func (c *Client) postJSON(ctx context.Context, p string, out any) error {
	req, err := c.newRequest(ctx, http.MethodPost, p, nil, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, out)
}

// upload streams filePath as the multipart field "file".
func (c *Client) upload(ctx context.Context, p, filePath string, out any) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(filePath))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, p, nil, pr)
	if err != nil {
		pr.Close()
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.doJSON(req, out)
}

// newRequest builds a request for p, an already escaped path below the base URL.
func (c *Client) newRequest(ctx context.Context, method, p string, q url.Values, body io.Reader) (*http.Request, error) {
	target := c.base.String() + p
	if q != nil {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.decorate(req)
	return req, nil
}

func (c *Client) decorate(req *http.Request) {
	if c.userID != "" {
		req.Header.Set(UserHeader, c.userID)
	}
}

func (c *Client) doJSON(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) fetch(req *http.Request) (*Blob, error) {
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", req.URL.Path, err)
	}
	blob := &Blob{ContentType: resp.Header.Get("Content-Type"), Data: data}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		blob.Filename = filepath.Base(params["filename"])
		if blob.Filename == "." {
			blob.Filename = ""
		}
	}
	return blob, nil
}

// send performs req and converts error statuses into *Error.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	c.log.Debug("request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, readError(resp)
	}
	return resp, nil
}

// readError extracts FastAPI's {"detail": ...} body. Validation errors
// carry a list of objects with a "msg" field.
func readError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	apiErr := &Error{Status: resp.StatusCode}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil && len(payload.Detail) > 0 {
		var text string
		if json.Unmarshal(payload.Detail, &text) == nil {
			apiErr.Message = text
			return apiErr
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(payload.Detail, &items) == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				msgs = append(msgs, it.Msg)
			}
			apiErr.Message = strings.Join(msgs, "; ")
			return apiErr
		}
		apiErr.Message = string(payload.Detail)
		return apiErr
	}
	apiErr.Message = string(bytes.TrimSpace(body))
	return apiErr
}
