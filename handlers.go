package taskboard

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"
)

// region Handler: FileServer

// NotFoundBody is the body of every 404 served by FileServer.
const NotFoundBody = "404 Not Found"

// contentTypes is scanned in order, the first extension contained anywhere in
// the path wins. "/foo.html.bak" is served as text/html.
var contentTypes = []struct {
	ext         string
	contentType string
}{
	{".html", "text/html"},
	{".css", "text/css"},
	{".js", "application/javascript"},
	{".png", "image/png"},
	{".jpg", "image/jpeg"},
	{".ico", "image/x-icon"},
}

// ContentType infers the content type of a URL path, text/plain by default.
func ContentType(path string) string {
	for _, t := range contentTypes {
		if strings.Contains(path, t.ext) {
			return t.contentType
		}
	}
	return "text/plain"
}

// FileServer serves files under root, addressed by the request path with its
// leading '/' removed. A missing, unreadable or empty file is a 404.
//
// There is no traversal protection: "/../x" reads x next to root.
func FileServer(root string) Handler {
	return HandlerFunc(func(c *Context) {
		path := c.Request.Url
		name := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(path, "/")))

		content, err := os.ReadFile(name)
		if err != nil || len(content) == 0 {
			c.ResponseText(404, NotFoundBody)
			return
		}
		c.ResponseBytes(200, ContentType(path), content)
	})
}

// endregion Handler: FileServer

// region Handler: tasks

var (
	savedBody  = []byte(`{"status": "saved"}`)
	errorBody  = []byte(`{"status": "error"}`)
	statusBody = []byte(`{"status": "running", "backend": "C++"}`)
)

// TaskHandlers exposes a TaskStore over HTTP.
type TaskHandlers struct {
	Store  *TaskStore
	Logger *slog.Logger
}

// Fetch answers the content of the task file, or [] if there is none.
func (h *TaskHandlers) Fetch(c *Context) {
	c.ResponseJSON(200, h.Store.Load())
}

// Save replaces the task file with the raw request body.
// A request without a header terminator has no body to save: it is dropped
// without a response.
func (h *TaskHandlers) Save(c *Context) {
	if !c.Request.Terminated {
		c.Drop()
		return
	}

	if err := h.Store.Save(c.Request.Body); err != nil {
		h.logger().Error("save tasks failed", "error", err)
		c.ResponseJSON(500, errorBody)
		return
	}
	c.ResponseJSON(200, savedBody)
}

func (h *TaskHandlers) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// StatusHandler identifies the backend, whatever the method.
var StatusHandler HandlerFunc = status

func status(c *Context) {
	c.ResponseJSON(200, statusBody)
}

// endregion Handler: tasks

// region Middleware: AllowAnyOrigin

// AllowAnyOrigin is a middleware that adds a permissive cross-origin header.
var AllowAnyOrigin HandlerFunc = allowAnyOrigin

func allowAnyOrigin(c *Context) {
	c.Response.Headers["Access-Control-Allow-Origin"] = "*"
	c.Next()
}

// endregion Middleware: AllowAnyOrigin

// region Middleware: Recover

// Recovery returns a middleware that recovers from panic
// and writes a 500 response
func Recovery(logger *slog.Logger) HandlerFunc {
	return func(c *Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("recovered from panic",
					"panic", err, "stack", string(debug.Stack()))

				// handlers after the one that panicked must not run
				c.currentHandlerIndex = len(c.handlers)

				c.Response.reset()
				c.Response.SetStateLine(500)
				if DebugPanicResponse {
					_, _ = fmt.Fprintf(c.Response.Body, "panic: %v", err)
				}
			}
		}()

		c.Next()
	}
}

// endregion Middleware: Recover

// region Middleware: Logger

// RequestLogger returns a middleware that logs the request
func RequestLogger(logger *slog.Logger) HandlerFunc {
	return func(c *Context) {
		st := time.Now()
		c.Next()

		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.Url,
			"status", c.Response.Status,
			"duration", time.Since(st))
	}
}

// endregion Middleware: Logger
