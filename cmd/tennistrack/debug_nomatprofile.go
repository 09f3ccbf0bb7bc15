//go:build !matprofile

package main

import "io"

// dumpMatProfile is a no-op unless built with -tags matprofile.
func dumpMatProfile(io.Writer) {}
