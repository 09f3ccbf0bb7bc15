package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tacusci/logging/v2"
	"github.com/takama/daemon"
	"github.com/tauraamui/tennistrack/internal/config"
	"github.com/tauraamui/tennistrack/pkg/configdef"
	"github.com/tauraamui/tennistrack/pkg/log"
	"github.com/tauraamui/tennistrack/pkg/preview"
	"github.com/tauraamui/tennistrack/pkg/web"
	"github.com/tauraamui/xerror"
)

const (
	name        = "tennistrack"
	description = "Tennis video object detection service with a browser upload page"
)

type Service struct {
	daemon.Daemon
}

// Setup writes the default config file.
func (service *Service) Setup() (string, error) {
	log.Info("Setting up tennistrack service...")

	err := config.DefaultCreator().Create()
	if err != nil {
		if !errors.Is(err, configdef.ErrConfigAlreadyExists) {
			return "", err
		}
		log.Error(err.Error())
	}

	return "Setup successful...", nil
}

func (service *Service) RemoveSetup() (string, error) {
	log.Info("Removing setup for tennistrack service...")
	err := config.DefaultDestroyer().Destroy()
	if err != nil {
		if !errors.Is(err, configdef.ErrConfigNotFound) {
			return "", err
		}
		log.Error("unable to delete config file: %s", err.Error())
	}

	return "Removing setup successful...", nil
}

func (service *Service) Manage() (string, error) {
	usage := "Usage: tennistrack setup | remove-setup | install | remove | start | stop | status | process <input> <output>"

	if len(os.Args) > 1 {
		command := os.Args[1]
		switch command {
		case "setup":
			return service.Setup()
		case "remove-setup":
			return service.RemoveSetup()
		case "install":
			return service.Install()
		case "remove":
			return service.Remove()
		case "start":
			return service.Start()
		case "stop":
			return service.Stop()
		case "status":
			return service.Status()
		case "process":
			if len(os.Args) != 4 {
				return usage, nil
			}
			return service.Process(os.Args[2], os.Args[3])
		default:
			return usage, nil
		}
	}

	values, err := config.DefaultResolver().Resolve()
	if err != nil {
		return "", err
	}
	if values.Debug {
		log.SetLevel("debug")
	}

	a, err := newApp(values)
	if err != nil {
		return "", err
	}

	opts, err := serverOptions(values)
	if err != nil {
		return "", err
	}
	opts.Model = a.modelStatus

	server, err := web.New(opts, a)
	if err != nil {
		return "", err
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	log.Info("Starting tennistrack...")

	ctx, cancelStartup := context.WithCancel(context.Background())
	go warmUp(ctx, a)

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ListenAndServe() }()

	select {
	case killSignal := <-interrupt:
		fmt.Print("\r")
		log.Error("Received signal: %s", killSignal)
	case err := <-serveErr:
		if err != nil {
			log.Error("Server stopped: %v", err)
		}
	}

	cancelStartup()
	log.Info("Shutting down server...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Unclean shutdown: %v", err)
	}
	if err := a.Close(); err != nil {
		log.Error("Unable to release detection model: %v", err)
	}

	if values.Debug {
		dumpMatProfile(os.Stdout)
	}

	return "Shutdown successful... BYE! 👋", nil
}

// Process runs a single file through the detector from the command line.
func (service *Service) Process(in, out string) (string, error) {
	values, err := config.DefaultResolver().Resolve()
	if err != nil {
		return "", err
	}

	a, err := newApp(values)
	if err != nil {
		return "", err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := a.cache.Get(ctx); err != nil {
		return "", err
	}

	bar, err := startProgressBar("Processing Video...")
	if err != nil {
		return "", err
	}
	res, err := a.Run(ctx, in, out, bar)
	bar.Stop()
	if err != nil {
		return "", err
	}
	if !res.Success {
		return "", xerror.Errorf("%s (%d of %d frames)", web.FailedMessage, res.FramesWritten, res.FramesTotal)
	}

	return fmt.Sprintf("Processing complete! %d frames written to %s", res.FramesWritten, out), nil
}

func serverOptions(values configdef.Values) (web.Options, error) {
	maxUpload, err := values.Upload.MaxSizeBytes()
	if err != nil {
		return web.Options{}, err
	}
	ttl, err := values.ResultTTLDuration()
	if err != nil {
		return web.Options{}, err
	}

	opts := web.Options{
		ListenAddress: values.ListenAddress,
		TempDir:       values.ResolvedTempDir(),
		MaxUploadSize: maxUpload,
		Extensions:    values.Upload.Extensions,
		ResultTTL:     ttl,
	}

	if values.PreviewTranscode {
		ff := preview.FFmpeg{}
		if ff.Available() {
			opts.Transcoder = ff
		} else {
			log.Warn("ffmpeg not found, previews will use the raw output")
		}
	}
	return opts, nil
}

// warmUp provisions and loads the model before the first upload arrives.
func warmUp(ctx context.Context, a *app) {
	if _, err := a.cache.Get(ctx); err != nil {
		log.Error("Unable to prepare detection model: %v", err)
	}
}

func init() {
	log.SetLevel(os.Getenv("TENNISTRACK_LOGGING_LEVEL"))
}

func main() {
	daemonType := daemon.SystemDaemon
	if runtime.GOOS == "darwin" {
		daemonType = daemon.UserAgent
	}

	srv, err := daemon.New(name, description, daemonType)
	if err != nil {
		logging.Error(err.Error()) //nolint
		os.Exit(1)
	}

	service := &Service{srv}
	status, err := service.Manage()
	if err != nil {
		logging.Error(err.Error()) //nolint
		os.Exit(1)
	}

	logging.Info(status) //nolint
}
