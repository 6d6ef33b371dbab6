package taskboard

const (
	MethodGET  = "GET"
	MethodPOST = "POST"

	// pseudo:

	// MethodAny matches any method
	MethodAny = "~ANY~"
)

// IndexPath is what "/" (and an empty path) is rewritten to before routing.
const IndexPath = "/index.html"

// Router is a Handler that preforms http requests routing.
type Router interface {
	Handler

	// Handle registers the handler for the given method and path.
	// NOTE: the last handler should be the real handler
	// and the previous handlers should be the middlewares.
	Handle(method string, path string, handlers ...Handler)

	// HandleFunc is a shortcut for router.Handle(method, path, handlers)
	// while handlers will be converted to Handler from HandlerFunc.
	HandleFunc(method string, path string, handlers ...HandlerFunc)

	// GET is a shortcut for router.HandleFunc("GET", path, handlers...)
	GET(path string, handlers ...HandlerFunc)

	// POST is a shortcut for router.HandleFunc("POST", path, handlers...)
	POST(path string, handlers ...HandlerFunc)

	// Any is a shortcut for router.HandleFunc(MethodAny, path, handlers...)
	Any(path string, handlers ...HandlerFunc)

	// Fallback sets the handler for requests no route matches.
	Fallback(handler Handler)

	// Use add middlewares to the router.
	// NOTE: middlewares added by Use will be executed BEFORE routing!
	Use(middlewares ...Handler)
}

type routerItem struct {
	method   string
	path     string
	handlers []Handler
}

func (r *routerItem) match(method, path string) bool {
	return r.path == path && (r.method == MethodAny || r.method == method)
}

// NormalizePath rewrites "/" and "" to IndexPath, every other path is
// returned unchanged (query string included).
func NormalizePath(path string) string {
	if path == "" || path == "/" {
		return IndexPath
	}
	return path
}

// exactRouter matches routes in registration order. A path matches only
// when it is byte-for-byte equal to the route's path: "/api/tasks?x=1" does
// not match "/api/tasks".
type exactRouter struct {
	routes      []routerItem
	middlewares []Handler
	fallback    Handler
}

// NewRouter creates a new exact-match router. Unmatched requests get an
// empty 404 until a Fallback is set.
func NewRouter() Router {
	return &exactRouter{
		routes:      []routerItem{},
		middlewares: []Handler{},
		fallback: HandlerFunc(func(c *Context) {
			c.Response.SetStateLine(404)
		}),
	}
}

// ServeHTTP do the router work
func (e *exactRouter) ServeHTTP(c *Context) {
	chain := make([]Handler, 0, len(e.middlewares)+1)
	chain = append(chain, e.middlewares...)
	c.setChain(append(chain, HandlerFunc(e.doRouter)))
	c.Next()
}

// doRouter do the real router work.
// It's a middleware (HandlerFunc) that will be added to the chain:
//
//	[exactRouter.middlewares..., doRouter, routerItem.handlers...]
func (e *exactRouter) doRouter(c *Context) {
	c.Request.Url = NormalizePath(c.Request.Url)

	for _, r := range e.routes {
		if r.match(c.Request.Method, c.Request.Url) {
			c.handlers = append(c.handlers, r.handlers...)
			c.Next()
			return
		}
	}

	c.handlers = append(c.handlers, e.fallback)
	c.Next()
}

// Handle adds a route to the router. Routes are tried in the order they
// were added.
func (e *exactRouter) Handle(method string, path string, handlers ...Handler) {
	if len(handlers) == 0 {
		panic("no handler")
	}

	for _, r := range e.routes {
		if r.method == method && r.path == path {
			panic("duplicate route")
		}
	}

	e.routes = append(e.routes, routerItem{
		method:   method,
		path:     path,
		handlers: handlers,
	})
}

// HandleFunc is a shortcut for router.Handle(method, path, handlers)
// while handlers will be converted to Handler from HandlerFunc.
func (e *exactRouter) HandleFunc(method string, path string, handlers ...HandlerFunc) {
	hs := make([]Handler, len(handlers))
	for i, h := range handlers {
		hs[i] = h
	}
	e.Handle(method, path, hs...)
}

func (e *exactRouter) GET(path string, handlers ...HandlerFunc) {
	e.HandleFunc(MethodGET, path, handlers...)
}

func (e *exactRouter) POST(path string, handlers ...HandlerFunc) {
	e.HandleFunc(MethodPOST, path, handlers...)
}

func (e *exactRouter) Any(path string, handlers ...HandlerFunc) {
	e.HandleFunc(MethodAny, path, handlers...)
}

func (e *exactRouter) Fallback(handler Handler) {
	if handler == nil {
		panic("nil fallback")
	}
	e.fallback = handler
}

// Use adds middlewares to the router.
// NOTE: middlewares added by Use will be executed BEFORE routing!
func (e *exactRouter) Use(middlewares ...Handler) {
	e.middlewares = append(e.middlewares, middlewares...)
}
