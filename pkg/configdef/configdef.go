package configdef

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/tauraamui/xerror"
	"gopkg.in/dealancer/validate.v2"
)

const (
	DefaultModelURL  = "https://drive.google.com/uc?export=download&id=1F3k5nOXN-BXs_egDTOd7UOQWpI-9H4Sn"
	DefaultModelPath = "models/yolov8x.onnx"
)

type Model struct {
	URL     string `json:"url" validate:"empty=false"`
	Path    string `json:"path" validate:"empty=false"`
	MinSize string `json:"min_size" validate:"empty=false"`
}

type Detection struct {
	InputSize  int     `json:"input_size" validate:"gte=32 & lte=2048"`
	Confidence float64 `json:"confidence"`
	NMS        float64 `json:"nms"`
	Target     string  `json:"target"`
}

type Upload struct {
	MaxSize    string   `json:"max_size" validate:"empty=false"`
	Extensions []string `json:"extensions" validate:"empty=false"`
}

type Values struct {
	Debug            bool      `json:"debug"`
	ListenAddress    string    `json:"listen_address" validate:"empty=false"`
	TempDir          string    `json:"temp_dir"`
	ResultTTL        string    `json:"result_ttl" validate:"empty=false"`
	PreviewTranscode bool      `json:"preview_transcode"`
	Model            Model     `json:"model"`
	Detection        Detection `json:"detection"`
	Upload           Upload    `json:"upload"`
}

// Default holds the values used when no config file exists, and the
// base that a loaded config file is merged over.
func Default() Values {
	return Values{
		ListenAddress:    ":8501",
		ResultTTL:        "15m",
		PreviewTranscode: true,
		Model: Model{
			URL:     DefaultModelURL,
			Path:    DefaultModelPath,
			MinSize: "1MiB",
		},
		Detection: Detection{
			InputSize:  640,
			Confidence: 0.25,
			NMS:        0.45,
			Target:     "cpu",
		},
		Upload: Upload{
			MaxSize:    "2GiB",
			Extensions: []string{"mp4", "avi", "mov"},
		},
	}
}

func (v Values) RunValidate() error {
	if err := validate.Validate(&v); err != nil {
		return err
	}
	return v.check()
}

func (v Values) check() error {
	const validationErrorHeader = "validation failed: %w"
	if !inUnitRange(v.Detection.Confidence) {
		return xerror.Errorf(validationErrorHeader, fmt.Errorf("detection confidence must be within (0, 1], got %v", v.Detection.Confidence))
	}
	if !inUnitRange(v.Detection.NMS) {
		return xerror.Errorf(validationErrorHeader, fmt.Errorf("detection nms must be within (0, 1], got %v", v.Detection.NMS))
	}
	if _, err := v.Model.MinSizeBytes(); err != nil {
		return xerror.Errorf(validationErrorHeader, err)
	}
	if _, err := v.Upload.MaxSizeBytes(); err != nil {
		return xerror.Errorf(validationErrorHeader, err)
	}
	if _, err := v.ResultTTLDuration(); err != nil {
		return xerror.Errorf(validationErrorHeader, err)
	}
	for _, ext := range v.Upload.Extensions {
		if len(strings.Trim(ext, ". ")) == 0 {
			return xerror.Errorf(validationErrorHeader, fmt.Errorf("upload extensions must not be blank"))
		}
	}
	return nil
}

func inUnitRange(f float64) bool {
	return f > 0 && f <= 1
}

func (m Model) MinSizeBytes() (int64, error) {
	n, err := units.RAMInBytes(m.MinSize)
	if err != nil {
		return 0, fmt.Errorf("invalid model min_size %q: %w", m.MinSize, err)
	}
	return n, nil
}

func (u Upload) MaxSizeBytes() (int64, error) {
	n, err := units.RAMInBytes(u.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("invalid upload max_size %q: %w", u.MaxSize, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("upload max_size must be positive, got %q", u.MaxSize)
	}
	return n, nil
}

// Allows reports whether the file name carries one of the accepted
// container extensions, ignoring case.
func (u Upload) Allows(filename string) bool {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return false
	}
	ext := strings.ToLower(filename[i+1:])
	for _, allowed := range u.Extensions {
		if strings.ToLower(strings.Trim(allowed, ". ")) == ext {
			return true
		}
	}
	return false
}

func (v Values) ResultTTLDuration() (time.Duration, error) {
	d, err := time.ParseDuration(v.ResultTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid result_ttl %q: %w", v.ResultTTL, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("result_ttl must be positive, got %q", v.ResultTTL)
	}
	return d, nil
}

func (v Values) ResolvedTempDir() string {
	if len(v.TempDir) > 0 {
		return v.TempDir
	}
	return os.TempDir()
}
