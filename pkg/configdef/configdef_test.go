package configdef_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/tauraamui/tennistrack/pkg/configdef"
)

func TestValidateDefaultConfigPasses(t *testing.T) {
	is := is.New(t)
	is.NoErr(configdef.Default().RunValidate())
}

func TestValidatePopulatedConfigPassesValidation(t *testing.T) {
	is := is.New(t)
	body := `{
			"listen_address": "127.0.0.1:9000",
			"result_ttl": "1h",
			"model": {
				"url": "http://models.local/yolov8n.onnx",
				"path": "/var/lib/tennistrack/yolov8n.onnx",
				"min_size": "512KiB"
			},
			"detection": {
				"input_size": 320,
				"confidence": 0.5,
				"nms": 0.4
			}
		}`
	config := configdef.Default()
	is.NoErr(json.Unmarshal([]byte(body), &config))
	is.NoErr(config.RunValidate())

	is.Equal(config.ListenAddress, "127.0.0.1:9000")
	is.Equal(config.Detection.InputSize, 320)
	// untouched sections keep their defaults
	is.Equal(config.Upload.Extensions, []string{"mp4", "avi", "mov"})
	is.True(config.PreviewTranscode)
}

func TestValidatePopulatedConfigFailsValidationForMissingModelPath(t *testing.T) {
	is := is.New(t)
	body := `{"model": {"url": "http://models.local/m.onnx", "path": "", "min_size": "1MiB"}}`
	config := configdef.Default()
	is.NoErr(json.Unmarshal([]byte(body), &config))

	err := config.RunValidate()
	is.True(err != nil)
	is.True(strings.Contains(err.Error(), "Path"))
}

func TestValidatePopulatedConfigFailsValidationForInputSizeOutOfRange(t *testing.T) {
	is := is.New(t)
	body := `{"detection": {"input_size": 8, "confidence": 0.3, "nms": 0.3}}`
	config := configdef.Default()
	is.NoErr(json.Unmarshal([]byte(body), &config))

	err := config.RunValidate()
	is.True(err != nil)
	is.True(strings.Contains(err.Error(), "InputSize"))
}

func TestValidatePopulatedConfigFailsValidationForConfidenceOutOfRange(t *testing.T) {
	is := is.New(t)
	config := configdef.Default()
	config.Detection.Confidence = 1.5

	err := config.RunValidate()
	is.True(err != nil)
	is.Equal(err.Error(), "validation failed: detection confidence must be within (0, 1], got 1.5")
}

func TestValidatePopulatedConfigFailsValidationForZeroNMS(t *testing.T) {
	is := is.New(t)
	config := configdef.Default()
	config.Detection.NMS = 0

	err := config.RunValidate()
	is.True(err != nil)
	is.Equal(err.Error(), "validation failed: detection nms must be within (0, 1], got 0")
}

func TestValidatePopulatedConfigFailsValidationForUnparsableSizes(t *testing.T) {
	is := is.New(t)
	config := configdef.Default()
	config.Model.MinSize = "lots"
	is.True(config.RunValidate() != nil)

	config = configdef.Default()
	config.Upload.MaxSize = "-4GiB"
	is.True(config.RunValidate() != nil)
}

func TestValidatePopulatedConfigFailsValidationForBadResultTTL(t *testing.T) {
	is := is.New(t)
	config := configdef.Default()
	config.ResultTTL = "soon"
	is.True(config.RunValidate() != nil)

	config.ResultTTL = "-1m"
	is.True(config.RunValidate() != nil)
}

func TestModelMinSizeBytesDefaultIsOneMebibyte(t *testing.T) {
	is := is.New(t)
	n, err := configdef.Default().Model.MinSizeBytes()
	is.NoErr(err)
	is.Equal(n, int64(1024*1024))
}

func TestResultTTLDuration(t *testing.T) {
	is := is.New(t)
	d, err := configdef.Default().ResultTTLDuration()
	is.NoErr(err)
	is.Equal(d, 15*time.Minute)
}

func TestUploadAllowsOnlyListedContainers(t *testing.T) {
	is := is.New(t)
	upload := configdef.Default().Upload

	is.True(upload.Allows("rally.mp4"))
	is.True(upload.Allows("RALLY.MOV"))
	is.True(upload.Allows("match.final.avi"))
	is.True(!upload.Allows("rally.mkv"))
	is.True(!upload.Allows("mp4"))
	is.True(!upload.Allows("rally."))
	is.True(!upload.Allows(""))
}

func TestUploadAllowsToleratesDottedExtensions(t *testing.T) {
	is := is.New(t)
	upload := configdef.Upload{Extensions: []string{".MP4"}}
	is.True(upload.Allows("clip.mp4"))
}

func TestResolvedTempDirPrefersConfiguredDir(t *testing.T) {
	is := is.New(t)
	config := configdef.Default()
	is.True(len(config.ResolvedTempDir()) > 0)

	config.TempDir = "/scratch"
	is.Equal(config.ResolvedTempDir(), "/scratch")
}
