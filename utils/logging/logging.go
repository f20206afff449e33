/*
SPDX-FileCopyrightText: Copyright (c) 2026 tcpblast authors. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

// Package logging provides the structured logging setup for tcpblast.
// Log lines follow the format:
//
//	<ISO8601_time> <tool_name> [<LEVEL>] <source>: [client=<id> ]<message>[ key=value ...]
//
// The "client" attribute is treated as a special filter field: it is
// extracted from the slog record and placed before the message body so
// per-worker diagnostics can be grepped by client id.
//
// Logs are written to stderr; stdout is reserved for the live progress
// line and the final report.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
)

// Config holds the logging configuration.
type Config struct {
	Level slog.Level
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "critical", "fatal":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// specialAttrKey is the slog attribute key that is extracted from the log
// record and placed before the message body as a named filter field
// (e.g. "client=42 ...").
const specialAttrKey = "client"

// ToolHandler is a slog.Handler that formats records as
//
//	<ISO8601_time> <tool_name> [<LEVEL>] <source>: [client=<id> ]<message>
//
// The "client" attribute is extracted from the record and placed as a named
// filter field before the message. All other attributes are appended as
// key=value pairs after the message.
//
// The <source> field is derived from the calling Go package name.
type ToolHandler struct {
	toolName string
	level    slog.Level
	writer   io.Writer
	mu       *sync.Mutex
	attrs    []slog.Attr
	groups   []string
}

// NewToolHandler creates a new ToolHandler that writes to the given writer.
func NewToolHandler(toolName string, level slog.Level, writer io.Writer) *ToolHandler {
	return &ToolHandler{
		toolName: toolName,
		level:    level,
		writer:   writer,
		mu:       &sync.Mutex{},
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *ToolHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle formats and writes the log record.
func (h *ToolHandler) Handle(_ context.Context, r slog.Record) error {
	timeStr := r.Time.Format("2006-01-02T15:04:05.000-07:00")
	levelStr := r.Level.String()

	source := callerSource(r.PC)

	var client string
	var extraParts []string

	collectAttr := func(a slog.Attr, groups []string) {
		if a.Key == specialAttrKey && client == "" {
			client = a.Value.String()
		} else {
			extraParts = append(extraParts, formatAttr(a, groups))
		}
	}

	for _, a := range h.resolveAttrs() {
		collectAttr(a, h.groups)
	}
	r.Attrs(func(a slog.Attr) bool {
		collectAttr(a, nil)
		return true
	})

	clientPrefix := ""
	if client != "" {
		clientPrefix = "client=" + client + " "
	}

	msg := r.Message
	if len(extraParts) > 0 {
		msg = msg + " " + strings.Join(extraParts, " ")
	}

	line := fmt.Sprintf("%s %s [%s] %s: %s%s\n",
		timeStr, h.toolName, levelStr, source, clientPrefix, msg)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write([]byte(line))
	return err
}

// WithAttrs returns a new Handler with the given attributes pre-set.
func (h *ToolHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &ToolHandler{
		toolName: h.toolName,
		level:    h.level,
		writer:   h.writer,
		mu:       h.mu,
		attrs:    newAttrs,
		groups:   h.groups,
	}
}

// WithGroup returns a new Handler with the given group name prepended to
// subsequent attribute keys.
func (h *ToolHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &ToolHandler{
		toolName: h.toolName,
		level:    h.level,
		writer:   h.writer,
		mu:       h.mu,
		attrs:    h.attrs,
		groups:   newGroups,
	}
}

// InitLogger initializes the default slog logger with a ToolHandler writing
// to stderr and returns the configured *slog.Logger.
func InitLogger(toolName string, config Config) *slog.Logger {
	handler := NewToolHandler(toolName, config.Level, os.Stderr)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// callerSource extracts the Go package name from the program counter.
func callerSource(pc uintptr) string {
	if pc == 0 {
		return "unknown"
	}
	frames := runtime.CallersFrames([]uintptr{pc})
	f, _ := frames.Next()
	if f.Function == "" {
		return "unknown"
	}
	parts := strings.Split(f.Function, "/")
	lastPart := parts[len(parts)-1]
	if idx := strings.Index(lastPart, "."); idx >= 0 {
		return lastPart[:idx]
	}
	return lastPart
}

// resolveAttrs returns the pre-set attributes with group prefixes applied.
func (h *ToolHandler) resolveAttrs() []slog.Attr {
	if len(h.groups) == 0 {
		return h.attrs
	}
	result := make([]slog.Attr, len(h.attrs))
	prefix := strings.Join(h.groups, ".") + "."
	for i, a := range h.attrs {
		result[i] = slog.Attr{Key: prefix + a.Key, Value: a.Value}
	}
	return result
}

// formatAttr formats a single slog.Attr as "key=value", applying the group
// prefix if provided.
func formatAttr(a slog.Attr, groups []string) string {
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}
	return fmt.Sprintf("%s=%s", key, a.Value.String())
}
