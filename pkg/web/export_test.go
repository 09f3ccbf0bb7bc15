package web

import (
	"time"

	"github.com/spf13/afero"
)

func OverloadFS(overload afero.Fs) func() {
	fsRef := fs
	fs = overload
	return func() { fs = fsRef }
}

func (s *Server) Sweep(now time.Time) {
	s.sweep(now)
}

func OverloadMultipartMemory(overload int64) func() {
	ref := multipartMemory
	multipartMemory = overload
	return func() { multipartMemory = ref }
}
