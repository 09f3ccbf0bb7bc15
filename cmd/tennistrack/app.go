package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/tauraamui/tennistrack/pkg/annotate"
	"github.com/tauraamui/tennistrack/pkg/configdef"
	"github.com/tauraamui/tennistrack/pkg/detect"
	"github.com/tauraamui/tennistrack/pkg/model"
	"github.com/tauraamui/tennistrack/pkg/process"
	"github.com/tauraamui/tennistrack/pkg/video/videobackend"
	"github.com/tauraamui/tennistrack/pkg/web"
)

// app joins the model cache to the frame processor. It is the runner the
// web server hands each upload to.
type app struct {
	values  configdef.Values
	backend videobackend.Backend
	cache   *model.Cache
}

func newApp(values configdef.Values) (*app, error) {
	minSize, err := values.Model.MinSizeBytes()
	if err != nil {
		return nil, err
	}

	provisioner := &model.Provisioner{
		Path:    values.Model.Path,
		URL:     values.Model.URL,
		MinSize: minSize,
		Fetcher: model.HTTPFetcher{Client: &http.Client{Timeout: 30 * time.Minute}},
	}

	return &app{
		values:  values,
		backend: videobackend.Resolve(os.Getenv("TENNISTRACK_VIDEO_BACKEND")),
		cache: model.NewCache(provisioner, detect.Options{
			InputSize:  values.Detection.InputSize,
			Confidence: float32(values.Detection.Confidence),
			NMS:        float32(values.Detection.NMS),
			Target:     values.Detection.Target,
		}),
	}, nil
}

func (a *app) Run(ctx context.Context, in, out string, sink process.ProgressSink) (process.Result, error) {
	net, err := a.cache.Get(ctx)
	if err != nil {
		return process.Result{}, err
	}
	return process.New(a.backend, annotate.New(net)).Run(ctx, in, out, sink)
}

func (a *app) modelStatus() web.ModelStatus {
	st := a.cache.Status()
	return web.ModelStatus{Ready: st.Ready, Message: st.Message}
}

func (a *app) Close() error {
	return a.cache.Close()
}
