// Package web embeds the page templates and static assets of the UI.
package web

import "embed"

//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and script served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
