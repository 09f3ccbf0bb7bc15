package model

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/docker/go-units"
	"github.com/spf13/afero"
	"github.com/tauraamui/tennistrack/pkg/log"
	"github.com/tauraamui/tennistrack/pkg/metrics"
	"github.com/tauraamui/xerror"
	"go.uber.org/multierr"
)

var fs = afero.NewOsFs()

// DefaultMinSize is the smallest file accepted as a real model. Anything
// below it is assumed to be an error page or a truncated download.
const DefaultMinSize int64 = 1024 * 1024

type Provisioner struct {
	Path    string
	URL     string
	MinSize int64
	Fetcher Fetcher

	mu     sync.Mutex
	status string
}

// Status is the last user facing line about the model file, empty until
// Ensure first runs.
func (p *Provisioner) Status() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Provisioner) note(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
}

func (p *Provisioner) minSize() int64 {
	if p.MinSize > 0 {
		return p.MinSize
	}
	return DefaultMinSize
}

func (p *Provisioner) fetcher() Fetcher {
	if p.Fetcher != nil {
		return p.Fetcher
	}
	return HTTPFetcher{}
}

// Ensure makes sure Path holds a plausible model file. A missing file is
// downloaded once. A file under the minimum size, including one left
// missing by a failed first download, is removed and downloaded exactly
// once more. The retried file is not checked again; whatever loads it
// reports a bad file.
func (p *Provisioner) Ensure(ctx context.Context) error {
	name := filepath.Base(p.Path)

	if err := fs.MkdirAll(filepath.Dir(p.Path), os.ModePerm|os.ModeDir); err != nil {
		return xerror.Errorf("unable to create model directory: %w", err)
	}

	exists, err := afero.Exists(fs, p.Path)
	if err != nil {
		return err
	}
	if !exists {
		p.note(fmt.Sprintf("Downloading %s...", name))
		if err := p.download(ctx); err != nil {
			log.Warn("Unable to download %s: %v", name, err)
		} else {
			p.note(fmt.Sprintf("Downloaded %s.", name))
			log.Info("Downloaded %s.", name)
		}
	}

	size, err := p.size()
	if err != nil {
		return err
	}
	if size >= p.minSize() {
		p.note(fmt.Sprintf("%s is ready.", name))
		log.Info("%s is ready.", name)
		return nil
	}

	p.note(fmt.Sprintf("Download failed for %s, re-downloading.", name))
	log.Error("Download failed for %s, re-downloading.", name)
	log.Debug("%s is %s, minimum is %s", name, units.HumanSize(float64(size)), units.HumanSize(float64(p.minSize())))
	if err := fs.Remove(p.Path); err != nil && !os.IsNotExist(err) {
		return xerror.Errorf("unable to remove undersized %s: %w", name, err)
	}
	if err := p.download(ctx); err != nil {
		p.note(fmt.Sprintf("Unable to download %s.", name))
		return xerror.Errorf("unable to download %s: %w", name, err)
	}
	p.note(fmt.Sprintf("Downloaded %s.", name))
	log.Info("Downloaded %s.", name)
	return nil
}

func (p *Provisioner) size() (int64, error) {
	info, err := fs.Stat(p.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}

// download goes through a .part file so that an interrupted transfer
// never leaves a file at Path.
func (p *Provisioner) download(ctx context.Context) (err error) {
	part := p.Path + ".part"
	defer func() {
		result := "ok"
		if err != nil {
			result = "failed"
			fs.Remove(part)
		}
		metrics.ModelDownloadsTotal.WithLabelValues(result).Inc()
	}()

	f, err := fs.Create(part)
	if err != nil {
		return err
	}

	n, fetchErr := p.fetcher().Fetch(ctx, p.URL, f)
	if err := multierr.Append(fetchErr, f.Close()); err != nil {
		return err
	}
	log.Debug("Fetched %s from %s", units.HumanSize(float64(n)), p.URL)

	return fs.Rename(part, p.Path)
}
