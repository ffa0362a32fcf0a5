/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

func (c *Config) log() *zap.SugaredLogger {
	if c.logger == nil {
		c.logger = zap.NewNop().Sugar()
	}

	return c.logger
}

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	cfg.log().Infof(format, args...)
}

func warnf(cfg *Config, format string, args ...any) {
	cfg.log().Warnf(format, args...)
}

func errorf(cfg *Config, format string, args ...any) {
	cfg.log().Errorf(format, args...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon())
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", html.EscapeString(title)))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", html.EscapeString(body)))

	return htmlBody.String()
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		errorf(cfg, "ERROR: Failed to encode response: %v", err)
		status = http.StatusInternalServerError
		data = []byte(`{"error":"internal error"}`)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	written, _ := w.Write(append(data, '\n'))

	return written
}

func writeError(cfg *Config, w http.ResponseWriter, status int, msg string) {
	writeJSON(cfg, w, status, errorResponse{Error: msg})
}
