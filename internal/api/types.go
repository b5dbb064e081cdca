package api

import "github.com/Faultbox/liverscope/internal/review"

// Health is the backend liveness report.
type Health struct {
	Status         string `json:"status"`
	Service        string `json:"service"`
	ModelAvailable bool   `json:"model_available"`
}

// FileUpload acknowledges a stored upload.
type FileUpload struct {
	Message   string `json:"message"`
	Filename  string `json:"filename"`
	FileSize  int64  `json:"file_size"`
	FileType  string `json:"file_type"`
	SavedPath string `json:"saved_path"`
}

// FileInfo describes one uploaded file.
type FileInfo struct {
	Name       string  `json:"name"`
	Size       int64   `json:"size"`
	UploadTime float64 `json:"upload_time"` // Unix seconds
}

// DicomMetadata are the header fields the backend reads from a DICOM file.
type DicomMetadata struct {
	Modality          string  `json:"modality"`
	StudyDescription  string  `json:"study_description"`
	SeriesDescription string  `json:"series_description"`
	Rows              int     `json:"rows"`
	Columns           int     `json:"columns"`
	SliceThickness    float64 `json:"slice_thickness"` // mm
}

// ImageInfo summarizes a file's pixel data.
type ImageInfo struct {
	Shape     []int   `json:"shape"`
	DataType  string  `json:"data_type"`
	MinValue  float64 `json:"min_value"`
	MaxValue  float64 `json:"max_value"`
	MeanValue float64 `json:"mean_value"`
}

// DicomInfo is the response of a DICOM metadata lookup.
type DicomInfo struct {
	Filename   string        `json:"filename"`
	Info       DicomMetadata `json:"info"`
	ImageInfo  ImageInfo     `json:"image_info"`
	HasPreview bool          `json:"has_preview"`
}

// SliceMetrics are the 2D segmentation measurements of one slice.
type SliceMetrics struct {
	LiverAreaRatio float64 `json:"liver_area_ratio"`
	LiverPixels    int64   `json:"liver_pixels"`
	TotalPixels    int64   `json:"total_pixels"`
}

// Segmentation is the 2D outcome for one slice.
type Segmentation struct {
	Success        bool         `json:"success"`
	MaskShape      []int        `json:"mask_shape,omitempty"`
	Metrics        SliceMetrics `json:"metrics"`
	MaskAreaPixels int64        `json:"mask_area_pixels"`
	Visualization  string       `json:"visualization,omitempty"` // Base64 PNG
	Error          string       `json:"error,omitempty"`
}

// SliceSegmentation is the response of a single-file segmentation.
type SliceSegmentation struct {
	Filename     string         `json:"filename"`
	Segmentation Segmentation   `json:"segmentation"`
	DicomInfo    map[string]any `json:"dicom_info,omitempty"`
}

// MeshInfo summarizes the server-side mesh.
type MeshInfo struct {
	NumVertices int       `json:"num_vertices"`
	NumFaces    int       `json:"num_faces"`
	Bounds      []float64 `json:"bounds,omitempty"` // xmin, xmax, ymin, ymax, zmin, zmax
}

// BoundingBox holds [min, max] per axis in voxels.
type BoundingBox struct {
	X []float64 `json:"x,omitempty"`
	Y []float64 `json:"y,omitempty"`
	Z []float64 `json:"z,omitempty"`
}

// ModelMetrics are the volumetric measurements of a reconstruction.
type ModelMetrics struct {
	VolumeML       float64     `json:"volume_ml"`
	VolumeMM3      float64     `json:"volume_mm3,omitempty"`
	SurfaceAreaCM2 float64     `json:"surface_area_cm2"`
	SurfaceAreaMM2 float64     `json:"surface_area_mm2,omitempty"`
	CenterOfMass   []float64   `json:"center_of_mass,omitempty"`
	SpacingX       float64     `json:"spacing_x,omitempty"`
	SpacingY       float64     `json:"spacing_y,omitempty"`
	SpacingZ       float64     `json:"spacing_z,omitempty"`
	BoundingBox    BoundingBox `json:"bounding_box"`
}

// Reconstruction carries the mesh payload and its metrics.
// The mesh arrives inline as STLBase64 or, for large models, at ModelURL.
type Reconstruction struct {
	MeshInfo  MeshInfo     `json:"mesh_info"`
	Metrics   ModelMetrics `json:"metrics"`
	STLBase64 string       `json:"stl_base64,omitempty"`
	ModelURL  string       `json:"model_url,omitempty"`
}

// HasModel reports whether a mesh payload or location was returned.
func (r Reconstruction) HasModel() bool {
	return r.STLBase64 != "" || r.ModelURL != ""
}

// SegmentationInfo is the 2D summary attached to a reconstruction.
type SegmentationInfo struct {
	MaskShape []int        `json:"mask_shape,omitempty"`
	Metrics   SliceMetrics `json:"metrics"`
}

// ReconstructionResult is the response of a single-file reconstruction.
type ReconstructionResult struct {
	Filename         string            `json:"filename"`
	Success          bool              `json:"success"`
	Reconstruction   Reconstruction    `json:"reconstruction"`
	SegmentationInfo *SegmentationInfo `json:"segmentation_info,omitempty"`
	Note             string            `json:"note,omitempty"`
}

// SeriesInfo describes an uploaded volume.
type SeriesInfo struct {
	NumSlices     int       `json:"num_slices"`
	VolumeShape   []int     `json:"volume_shape"`
	Spacing       []float64 `json:"spacing"`
	NumDicomFiles int       `json:"num_dicom_files"`
}

// SeriesUpload is the response of a series archive upload. The archive
// name doubles as the series id for later requests.
type SeriesUpload struct {
	Filename       string         `json:"filename"`
	Success        bool           `json:"success"`
	SeriesInfo     SeriesInfo     `json:"series_info"`
	Reconstruction Reconstruction `json:"reconstruction"`
}

// SeriesSlice is one slice of a series segmentation.
type SeriesSlice struct {
	SliceIndex int `json:"slice_index"`
	Segmentation
}

// SeriesSegmentation is the per-slice segmentation of a series.
type SeriesSegmentation struct {
	SeriesID           string        `json:"series_id"`
	VolumeShape        []int         `json:"volume_shape,omitempty"`
	TotalLiverVolumeML *float64      `json:"total_liver_volume_ml,omitempty"`
	Slices             []SeriesSlice `json:"slices"`
}

// SliceResults converts the response into review input, ordered as received.
func (s *SeriesSegmentation) SliceResults() []review.SliceResult {
	out := make([]review.SliceResult, len(s.Slices))
	for i, sl := range s.Slices {
		out[i] = review.SliceResult{
			Index:          sl.SliceIndex,
			Success:        sl.Success,
			AreaRatio:      sl.Metrics.LiverAreaRatio,
			LiverPixels:    sl.Metrics.LiverPixels,
			TotalPixels:    sl.Metrics.TotalPixels,
			MaskAreaPixels: sl.MaskAreaPixels,
			Overlay:        sl.Visualization,
		}
	}
	return out
}

// MetricsResult is the response of a metrics lookup.
type MetricsResult struct {
	Filename string       `json:"filename"`
	Metrics  ModelMetrics `json:"metrics"`
}

// Blob is a downloaded file.
type Blob struct {
	Filename    string
	ContentType string
	Data        []byte
}
