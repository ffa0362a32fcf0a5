/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
)

func homePage(cfg *Config, catalog *Catalog) string {
	var b strings.Builder

	b.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	b.WriteString(getFavicon())
	b.WriteString(`<title>mash</title></head><body>`)
	b.WriteString(`<h1>mash</h1>`)
	b.WriteString(`<p>Fill every category, pick a mood, spin a magic number, and let the count decide.</p>`)
	fmt.Fprintf(&b, `<p><a href="%s/quiz">Start a new quiz</a></p>`, cfg.prefix)

	b.WriteString(`<h2>Categories</h2><ul>`)
	for _, c := range catalog.Categories {
		fmt.Fprintf(&b, "<li>%s %s: %s</li>",
			html.EscapeString(c.Icon),
			html.EscapeString(c.Title),
			html.EscapeString(c.Description))
	}
	b.WriteString(`</ul>`)

	b.WriteString(`<h2>Moods</h2><ul>`)
	for _, m := range catalog.Moods {
		fmt.Fprintf(&b, "<li>%s %s: %s</li>",
			html.EscapeString(m.Emoji),
			html.EscapeString(m.Name),
			html.EscapeString(m.Description))
	}
	b.WriteString(`</ul></body></html>`)

	return b.String()
}

func serveHomePage(cfg *Config, catalog *Catalog, errs chan<- error) httprouter.Handle {
	page := homePage(cfg, catalog)

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(page)))
		securityHeaders(cfg, w)

		written, err := w.Write([]byte(page))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Home page (%s) to %s in %s",
			humanReadableSize(written),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveHealthCheck(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveRobots(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: *
Disallow: /quiz/
Disallow: /api/

User-agent: GPTBot
Disallow: /

User-agent: CCBot
Disallow: /`

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			errs <- err

			return
		}
	}
}
