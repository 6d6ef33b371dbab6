package taskboard

import (
	"strings"
	"testing"
)

// serveDirect runs h on an in-memory request.
func serveDirect(h Handler, method, path string) *Context {
	req := NewRequest()
	req.Method = method
	req.Url = path
	req.Version = "HTTP/1.1"
	req.Terminated = true

	c := NewContext(req, NewResponse())
	h.ServeHTTP(c)
	return c
}

func TestExactRouter(t *testing.T) {
	r := NewRouter()
	r.Use(RequestLogger(discardLogger()), Recovery(discardLogger()))

	r.GET("/hello", func(c *Context) {
		c.ResponseText(200, "/hello")
	})
	r.POST("/hello", func(c *Context) {
		c.ResponseText(200, "POST")
	})
	r.GET("/index.html", func(c *Context) {
		c.ResponseText(200, "index")
	})
	r.Any("/any", func(c *Context) {
		c.ResponseText(200, "any "+c.Request.Method)
	})
	r.HandleFunc(MethodAny, "/panic", func(c *Context) {
		panic("I'm panic!")
	})
	r.Fallback(HandlerFunc(func(c *Context) {
		c.ResponseText(404, "fallback "+c.Request.Url)
	}))

	cases := []struct {
		method         string
		path           string
		expectedStatus int
		expectedBody   string
	}{
		{"GET", "/hello", 200, "/hello"},
		{"POST", "/hello", 200, "POST"},
		{"PUT", "/hello", 404, "fallback /hello"},
		{"GET", "/hello?x=1", 404, "fallback /hello?x=1"},
		{"GET", "/hello/", 404, "fallback /hello/"},
		{"GET", "/hello/world", 404, "fallback /hello/world"},

		{"GET", "/", 200, "index"},
		{"GET", "", 200, "index"},
		{"GET", "/?x=1", 404, "fallback /?x=1"},

		{"GET", "/any", 200, "any GET"},
		{"DELETE", "/any", 200, "any DELETE"},
		{"BREW", "/any", 200, "any BREW"},

		{"GET", "/panic", 500, ""},
	}

	for _, tt := range cases {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			c := serveDirect(r, tt.method, tt.path)
			if c.Response.Status != tt.expectedStatus {
				t.Errorf("expected status code %d, got %d", tt.expectedStatus, c.Response.Status)
			}
			if got := c.Response.Body.String(); got != tt.expectedBody {
				t.Errorf("expected %q, got %q", tt.expectedBody, got)
			}
		})
	}
}

func TestExactRouterOrder(t *testing.T) {
	r := NewRouter()
	r.GET("/x", func(c *Context) { c.ResponseText(200, "first") })
	r.Any("/x", func(c *Context) { c.ResponseText(200, "second") })

	if got := serveDirect(r, "GET", "/x").Response.Body.String(); got != "first" {
		t.Errorf("expected the first registered route, got %q", got)
	}
	if got := serveDirect(r, "POST", "/x").Response.Body.String(); got != "second" {
		t.Errorf("expected the MethodAny route, got %q", got)
	}
}

func TestExactRouterDefaultFallback(t *testing.T) {
	c := serveDirect(NewRouter(), "GET", "/nothing")
	if c.Response.Status != 404 || c.Response.Body.Len() != 0 {
		t.Errorf("expected an empty 404, got %d %q", c.Response.Status, c.Response.Body.String())
	}
}

func TestExactRouterMiddlewares(t *testing.T) {
	var trace []string
	mark := func(name string) HandlerFunc {
		return func(c *Context) {
			trace = append(trace, name)
			c.Next()
		}
	}

	r := NewRouter()
	r.Use(mark("use1"), mark("use2"))
	r.GET("/x", mark("route"), func(c *Context) {
		trace = append(trace, "handler")
	})
	r.Fallback(HandlerFunc(func(c *Context) {
		trace = append(trace, "fallback")
	}))

	serveDirect(r, "GET", "/x")
	if got := strings.Join(trace, ","); got != "use1,use2,route,handler" {
		t.Errorf("unexpected chain %s", got)
	}

	trace = nil
	serveDirect(r, "GET", "/y")
	if got := strings.Join(trace, ","); got != "use1,use2,fallback" {
		t.Errorf("unexpected chain %s", got)
	}
}

func TestRecoveryStopsChain(t *testing.T) {
	r := NewRouter()
	r.Use(Recovery(discardLogger()))

	ran := false
	r.GET("/x", func(c *Context) {
		panic("middleware panic")
	}, func(c *Context) {
		ran = true
		c.ResponseText(200, "after")
	})

	c := serveDirect(r, MethodGET, "/x")
	if c.Response.Status != 500 || c.Response.Body.Len() != 0 {
		t.Errorf("expected an empty 500, got %d %q", c.Response.Status, c.Response.Body.String())
	}
	if ran {
		t.Error("handlers after the panic must not run")
	}
}

func TestExactRouterHandlePanics(t *testing.T) {
	expectPanic := func(name string, f func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s: expected panic", name)
			}
		}()
		f()
	}

	r := NewRouter()
	r.GET("/x", func(c *Context) {})

	expectPanic("duplicate route", func() { r.GET("/x", func(c *Context) {}) })
	expectPanic("no handler", func() { r.GET("/y") })
	expectPanic("nil fallback", func() { r.Fallback(nil) })
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"":            IndexPath,
		"/":           IndexPath,
		"/index.html": "/index.html",
		"/?x=1":       "/?x=1",
		"//":          "//",
		"/api/tasks":  "/api/tasks",
	}
	for in, expected := range cases {
		if got := NormalizePath(in); got != expected {
			t.Errorf("NormalizePath(%q) = %q, expected %q", in, got, expected)
		}
	}
}
