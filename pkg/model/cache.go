package model

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/tauraamui/tennistrack/pkg/detect"
)

type Loader func(path string) (*detect.Net, error)

// Cache provisions and loads the model the first time it is asked for and
// hands out the same network from then on. A failed attempt is not
// remembered, the next Get tries again.
type Cache struct {
	mu          sync.Mutex
	provisioner *Provisioner
	load        Loader
	net         *detect.Net
	ready       atomic.Bool
}

type Status struct {
	Ready   bool
	Message string
}

// Status does not wait on a Get in progress, so it can be polled while the
// model downloads.
func (c *Cache) Status() Status {
	return Status{Ready: c.ready.Load(), Message: c.provisioner.Status()}
}

func NewCache(provisioner *Provisioner, opts detect.Options) *Cache {
	return NewCacheWithLoader(provisioner, func(path string) (*detect.Net, error) {
		return detect.Load(path, opts)
	})
}

func NewCacheWithLoader(provisioner *Provisioner, load Loader) *Cache {
	return &Cache{provisioner: provisioner, load: load}
}

func (c *Cache) Get(ctx context.Context) (*detect.Net, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.net != nil {
		return c.net, nil
	}

	if err := c.provisioner.Ensure(ctx); err != nil {
		return nil, err
	}

	net, err := c.load(c.provisioner.Path)
	if err != nil {
		c.provisioner.note(fmt.Sprintf("Unable to load %s.", filepath.Base(c.provisioner.Path)))
		return nil, err
	}
	c.net = net
	c.ready.Store(true)
	return net, nil
}

func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.net == nil {
		return nil
	}
	err := c.net.Close()
	c.net = nil
	c.ready.Store(false)
	return err
}
