//go:build matprofile

package main

import (
	"io"

	"gocv.io/x/gocv"
)

// dumpMatProfile lists Mats that were never closed, with their stacks.
func dumpMatProfile(w io.Writer) {
	gocv.MatProfile.WriteTo(w, 1)
}
