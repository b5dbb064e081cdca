package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/", "user-42")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestNewRejectsBadScheme(t *testing.T) {
	if _, err := New("ftp://example.org", "u"); err == nil {
		t.Error("expected error for ftp scheme")
	}
}

func TestHealthSendsUserHeader(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %s, want /health", r.URL.Path)
		}
		if got := r.Header.Get(UserHeader); got != "user-42" {
			t.Errorf("X-User = %q, want user-42", got)
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "service": "liver", "model_available": true})
	}))

	h, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if h.Status != "healthy" || !h.ModelAvailable {
		t.Errorf("unexpected health %+v", h)
	}
}

func TestErrorDetail(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"string detail", 404, `{"detail":"file not found"}`, "file not found"},
		{"validation list", 422, `{"detail":[{"msg":"field required"},{"msg":"bad type"}]}`, "field required; bad type"},
		{"plain text", 502, "bad gateway", "bad gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))

			_, err := c.Reconstruct(context.Background(), "slice.dcm")
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("error %v is not *Error", err)
			}
			if apiErr.Status != tt.status {
				t.Errorf("Status = %d, want %d", apiErr.Status, tt.status)
			}
			if apiErr.Message != tt.want {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.want)
			}
		})
	}
}

func TestIsNotFound(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	_, err := c.Metrics(context.Background(), "missing.dcm")
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false", err)
	}
}

func TestUploadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slice 1.dcm")
	if err := os.WriteFile(path, []byte("DICM-data"), 0644); err != nil {
		t.Fatal(err)
	}

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/files/upload" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		data, _ := io.ReadAll(f)
		if string(data) != "DICM-data" {
			t.Errorf("uploaded %q", data)
		}
		writeJSON(w, http.StatusOK, FileUpload{Filename: hdr.Filename, FileSize: int64(len(data)), FileType: ".dcm"})
	}))

	res, err := c.UploadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if res.Filename != "slice 1.dcm" || res.FileSize != 9 {
		t.Errorf("unexpected upload result %+v", res)
	}
}

func TestUploadMissingFile(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	if _, err := c.UploadSeries(context.Background(), "/nonexistent/series.zip"); err == nil {
		t.Error("expected error for missing archive")
	}
}

func TestSegmentSliceEscapesName(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/segmentation/slice/a b.dcm" {
			t.Errorf("path = %q", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"filename": "a b.dcm",
			"segmentation": map[string]any{
				"success":          true,
				"mask_shape":       []int{512, 512},
				"metrics":          map[string]any{"liver_area_ratio": 0.12, "liver_pixels": 31457, "total_pixels": 262144},
				"mask_area_pixels": 31457,
				"visualization":    "iVBORw0KGgo=",
			},
			"dicom_info": map[string]any{"Modality": "CT"},
		})
	}))

	res, err := c.SegmentSlice(context.Background(), "a b.dcm")
	if err != nil {
		t.Fatalf("SegmentSlice: %v", err)
	}
	seg := res.Segmentation
	if !seg.Success || seg.Metrics.LiverPixels != 31457 || seg.Visualization == "" {
		t.Errorf("unexpected segmentation %+v", seg)
	}
}

func TestSegmentSeriesSliceResults(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/segmentation/series/ct.zip" {
			t.Errorf("path = %q", r.URL.Path)
		}
		io.WriteString(w, `{"series_id":"ct.zip","slices":[
			{"slice_index":0,"success":true,"metrics":{"liver_area_ratio":0.1,"liver_pixels":10,"total_pixels":100},"mask_area_pixels":10},
			{"slice_index":1,"success":false,"metrics":{"liver_area_ratio":0,"liver_pixels":0,"total_pixels":100},"mask_area_pixels":0,"visualization":"png"}
		]}`)
	}))

	res, err := c.SegmentSeries(context.Background(), "ct.zip")
	if err != nil {
		t.Fatalf("SegmentSeries: %v", err)
	}
	slices := res.SliceResults()
	if len(slices) != 2 {
		t.Fatalf("got %d slices, want 2", len(slices))
	}
	if slices[0].LiverPixels != 10 || !slices[0].Success || slices[0].HasOverlay() {
		t.Errorf("slice 0 = %+v", slices[0])
	}
	if slices[1].Index != 1 || slices[1].Overlay != "png" {
		t.Errorf("slice 1 = %+v", slices[1])
	}
}

func TestExport(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("format"); got != "ply" {
			t.Errorf("format = %q, want ply", got)
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		io.WriteString(w, "ply\n")
	}))

	blob, err := c.Export(context.Background(), "slice.dcm", FormatPLY)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if blob.Filename != "liver_model_slice.dcm.ply" {
		t.Errorf("Filename = %q", blob.Filename)
	}
	if string(blob.Data) != "ply\n" {
		t.Errorf("Data = %q", blob.Data)
	}
}

func TestExportContentDisposition(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="../model.stl"`)
		io.WriteString(w, "solid")
	}))

	blob, err := c.Export(context.Background(), "x.dcm", FormatSTL)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if blob.Filename != "model.stl" {
		t.Errorf("Filename = %q, want model.stl", blob.Filename)
	}
}

func TestExportRejectsFormat(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	if _, err := c.Export(context.Background(), "x.dcm", "obj"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestDownloadRelative(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/liver.stl" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get(UserHeader) == "" {
			t.Error("missing X-User on download")
		}
		io.WriteString(w, "mesh-bytes")
	}))

	data, err := c.Download(context.Background(), "/models/liver.stl")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(data) != "mesh-bytes" {
		t.Errorf("data = %q", data)
	}
}

func TestContextCancel(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ListFiles(ctx)
	if err == nil || !strings.Contains(err.Error(), "context canceled") {
		t.Errorf("error = %v, want context canceled", err)
	}
}

func TestDicomInfo(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/dicom/info/ct 01.dcm" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"filename": "ct 01.dcm",
			"info": map[string]any{
				"modality": "CT", "study_description": "ABDOMEN", "series_description": "",
				"rows": 512, "columns": 512, "slice_thickness": 2.5,
			},
			"image_info": map[string]any{
				"shape": []int{512, 512}, "data_type": "int16",
				"min_value": -1024, "max_value": 3071, "mean_value": -512.5,
			},
			"has_preview": true,
		})
	}))

	info, err := c.DicomInfo(context.Background(), "ct 01.dcm")
	if err != nil {
		t.Fatalf("DicomInfo: %v", err)
	}
	if info.Info.Modality != "CT" || info.Info.Rows != 512 || info.Info.SliceThickness != 2.5 {
		t.Errorf("metadata = %+v", info.Info)
	}
	if len(info.ImageInfo.Shape) != 2 || info.ImageInfo.MinValue != -1024 || info.ImageInfo.DataType != "int16" {
		t.Errorf("image info = %+v", info.ImageInfo)
	}
	if !info.HasPreview {
		t.Error("HasPreview = false")
	}
}

func TestDicomInfoNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "file not found"})
	}))

	_, err := c.DicomInfo(context.Background(), "missing.dcm")
	if !IsNotFound(err) {
		t.Errorf("error = %v, want a 404", err)
	}
}

func TestDicomPreview(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nrest")
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/dicom/preview/slice.dcm" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get(UserHeader); got != "user-42" {
			t.Errorf("X-User = %q", got)
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}))

	blob, err := c.DicomPreview(context.Background(), "slice.dcm")
	if err != nil {
		t.Fatalf("DicomPreview: %v", err)
	}
	if string(blob.Data) != string(png) || blob.ContentType != "image/png" {
		t.Errorf("blob = %q %s", blob.Data, blob.ContentType)
	}
	if blob.Filename != "slice_preview.png" {
		t.Errorf("Filename = %q, want slice_preview.png", blob.Filename)
	}
}
