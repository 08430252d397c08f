// Package web bundles the HTML templates and static assets into the binary.
package web

import "embed"

// Templates holds layouts, partials and pages rendered by internal/view.
//
//go:embed templates/**/*.html
var Templates embed.FS

// Static holds the stylesheet served under /static/.
//
//go:embed static/**/*
var Static embed.FS
