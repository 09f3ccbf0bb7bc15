package web

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/afero"
	"github.com/tauraamui/tennistrack/pkg/log"
	"github.com/tauraamui/tennistrack/pkg/metrics"
	"github.com/tauraamui/tennistrack/pkg/preview"
	"github.com/tauraamui/tennistrack/pkg/process"
	"github.com/tauraamui/xerror"
	"go.uber.org/multierr"
	"goji.io"
	"goji.io/pat"
)

var fs = afero.NewOsFs()

type Runner interface {
	Run(ctx context.Context, in, out string, sink process.ProgressSink) (process.Result, error)
}

type RunnerFunc func(ctx context.Context, in, out string, sink process.ProgressSink) (process.Result, error)

func (f RunnerFunc) Run(ctx context.Context, in, out string, sink process.ProgressSink) (process.Result, error) {
	return f(ctx, in, out, sink)
}

type Options struct {
	ListenAddress string
	TempDir       string
	MaxUploadSize int64
	Extensions    []string
	ResultTTL     time.Duration
	// SweepInterval is how often expired results are looked for.
	SweepInterval time.Duration
	// Transcoder, when set, produces a browser playable preview of each
	// successful output.
	Transcoder preview.Transcoder
	// Model reports detection model readiness on /healthz when set.
	Model func() ModelStatus
}

type ModelStatus struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message,omitempty"`
}

type Server struct {
	opts      Options
	runner    Runner
	jobs      *registry
	page      *page
	handler   http.Handler
	scheduler gocron.Scheduler

	ctx     context.Context
	cancel  context.CancelFunc
	running sync.WaitGroup

	mu         sync.Mutex
	httpServer *http.Server
}

func New(opts Options, runner Runner) (*Server, error) {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = 15 * time.Minute
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{"mp4", "avi", "mov"}
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if err := fs.MkdirAll(opts.TempDir, os.ModePerm|os.ModeDir); err != nil {
		return nil, xerror.Errorf("unable to create temp dir %s: %w", opts.TempDir, err)
	}

	pg, err := newPage(opts)
	if err != nil {
		return nil, err
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, xerror.Errorf("unable to create result janitor: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:      opts,
		runner:    runner,
		jobs:      newRegistry(),
		page:      pg,
		scheduler: scheduler,
		ctx:       ctx,
		cancel:    cancel,
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(opts.SweepInterval),
		gocron.NewTask(func() { s.sweep(time.Now()) }),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		cancel()
		return nil, xerror.Errorf("unable to schedule result janitor: %w", err)
	}

	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := goji.NewMux()
	mux.HandleFunc(pat.Get("/"), s.handleIndex)
	mux.HandleFunc(pat.Get("/healthz"), s.handleHealth)
	mux.Handle(pat.Get("/metrics"), promhttp.Handler())

	mux.HandleFunc(pat.Post("/jobs"), s.handleCreateJob)
	mux.HandleFunc(pat.Get("/jobs/:id"), s.handleJobStatus)
	mux.HandleFunc(pat.Get("/jobs/:id/video"), s.handleJobVideo)
	mux.HandleFunc(pat.Get("/jobs/:id/download"), s.handleJobDownload)
	mux.HandleFunc(pat.Delete("/jobs/:id"), s.handleDeleteJob)

	return cors.AllowAll().Handler(mux)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start runs the result janitor. It does not listen, see ListenAndServe.
func (s *Server) Start() {
	s.scheduler.Start()
}

func (s *Server) ListenAndServe() error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:              s.opts.ListenAddress,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.Start()
	log.Info("Listening on %s", s.opts.ListenAddress)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, cancels a running job, waits for it to
// unwind and then deletes every file the server still holds.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs error

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv != nil {
		errs = multierr.Append(errs, srv.Shutdown(ctx))
	}

	s.cancel()
	s.running.Wait()
	errs = multierr.Append(errs, s.scheduler.Shutdown())

	for _, j := range s.jobs.drain() {
		removeFiles(j.files()...)
	}
	return errs
}

func (s *Server) sweep(now time.Time) {
	for _, j := range s.jobs.expired(now, s.opts.ResultTTL) {
		log.Debug("[job %s] result expired, removing files", j.snapshot().ID)
		removeFiles(j.files()...)
	}
}

func (s *Server) execute(j *job) {
	defer s.running.Done()
	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	id := j.snapshot().ID
	j.start()
	log.Info("[job %s] processing started", id)

	input, output := j.paths()
	res, err := s.runner.Run(s.ctx, input, output, j)
	removeFiles(input)

	if err != nil || !res.Success {
		removeFiles(output)
		if err != nil {
			log.Error("[job %s] %s: %v", id, FailedMessage, err)
		} else {
			log.Error("[job %s] %s (%d of %d frames)", id, FailedMessage, res.FramesWritten, res.FramesTotal)
		}
		j.fail(res, err, time.Now())
		return
	}

	j.succeed(res, s.transcodePreview(id, output), time.Now())
	log.Info("[job %s] processing complete, %d frames", id, res.FramesWritten)
}

func (s *Server) transcodePreview(id, output string) string {
	if s.opts.Transcoder == nil {
		return ""
	}

	path, err := reserveTempPath(s.opts.TempDir, "tennistrack-preview-*.mp4")
	if err != nil {
		log.Warn("[job %s] unable to allocate preview file: %v", id, err)
		return ""
	}
	if err := s.opts.Transcoder.Transcode(s.ctx, output, path); err != nil {
		log.Warn("[job %s] previewing raw output, %v", id, err)
		removeFiles(path)
		return ""
	}
	return path
}

// reserveTempPath picks a unique name in dir without leaving a file behind,
// so that the existence of the path later means a writer produced it.
func reserveTempPath(dir, pattern string) (string, error) {
	f, err := afero.TempFile(fs, dir, pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := multierr.Append(f.Close(), fs.Remove(name)); err != nil {
		return "", err
	}
	return name, nil
}

func removeFiles(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := fs.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warn("Unable to remove temp file %s: %v", p, err)
		}
	}
}
