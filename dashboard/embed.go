// Package dashboard provides the embedded inspector page for tinystore.
//
// This package uses Go's embed directive to include the page's HTML, CSS
// and JavaScript at compile time, so a served store needs no external
// asset files.
//
// The embedded assets are served by the server package at the root path ("/").
// Users of the tinystore library should not need to interact with this
// package directly.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the inspector page.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Inspector page with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
