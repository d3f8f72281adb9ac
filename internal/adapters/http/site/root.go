// Package site serves the embedded login, registration and dashboard pages
// together with the keystroke capture script they load.
package site

import (
	"context"
	"net/http"
)

// Register attaches the embedded site routes to mux.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	files := http.FileServer(FS())
	mux.Handle("/", files)
}
