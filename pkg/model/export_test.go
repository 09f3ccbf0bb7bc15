package model

import (
	"net/url"

	"github.com/spf13/afero"
)

func OverloadFS(overload afero.Fs) func() {
	fsRef := fs
	fs = overload
	return func() { fs = fsRef }
}

func ConfirmURL(page []byte, base *url.URL) (string, error) {
	return confirmURL(page, base)
}
