// Package web embeds the page templates and static assets served by chronoly.
package web

import "embed"

// TemplatesFS holds layout.html plus one template per page.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and other assets served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
