package detect

import (
	"errors"
	"testing"

	"github.com/matryer/is"
	"gocv.io/x/gocv"
)

type fakePreferer struct {
	backend    gocv.NetBackendType
	target     gocv.NetTargetType
	backendErr error
	targetErr  error
}

func (f *fakePreferer) SetPreferableBackend(b gocv.NetBackendType) error {
	f.backend = b
	return f.backendErr
}

func (f *fakePreferer) SetPreferableTarget(t gocv.NetTargetType) error {
	f.target = t
	return f.targetErr
}

func TestPreferTargetCUDAUsesCUDABackend(t *testing.T) {
	is := is.New(t)

	f := &fakePreferer{}
	is.NoErr(preferTarget(f, "cuda"))
	is.Equal(f.backend, gocv.NetBackendCUDA)
	is.Equal(f.target, gocv.NetTargetCUDA)
}

func TestPreferTargetCPUUsesDefaultBackend(t *testing.T) {
	is := is.New(t)

	f := &fakePreferer{}
	is.NoErr(preferTarget(f, "cpu"))
	is.Equal(f.backend, gocv.NetBackendDefault)
	is.Equal(f.target, gocv.NetTargetCPU)
}

func TestPreferTargetReportsRejectedTarget(t *testing.T) {
	is := is.New(t)

	rejected := errors.New("cuda unavailable")
	err := preferTarget(&fakePreferer{targetErr: rejected}, "cuda")
	is.True(errors.Is(err, rejected))
}

func TestPreferTargetReportsRejectedBackend(t *testing.T) {
	is := is.New(t)

	rejected := errors.New("no backend")
	f := &fakePreferer{backendErr: rejected, target: gocv.NetTargetVulkan}
	err := preferTarget(f, "cuda")
	is.True(errors.Is(err, rejected))
	is.Equal(f.target, gocv.NetTargetVulkan)
}
