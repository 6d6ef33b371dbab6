package taskboard

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http" // for http.StatusText only
	"net/textproto"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// DebugPanicResponse response a 500 status with the error message
	// when a panic occurs and handler is not handling it.
	// In production, set it to false, which makes it response 500 without any
	// message, avoiding leaking sensitive information.
	DebugPanicResponse = false

	// ResponseVersion is the protocol token of every status line.
	ResponseVersion = "HTTP/1.1"

	readChunkSize = 4096
)

var (
	// ErrEmptyRequest is returned when the peer closes the connection
	// without sending a single byte.
	ErrEmptyRequest = errors.New("empty request")
	// ErrBadContentLength is returned when a Content-Length header is not a
	// non-negative decimal integer.
	ErrBadContentLength = errors.New("bad Content-Length")
	// ErrServerClosed is returned by Serve and ListenAndServe after Close.
	ErrServerClosed = errors.New("server closed")
)

var headerTerminator = []byte("\r\n\r\n")

// region Request

// Request is an HTTP request.
// The zero value is NOT valid, call NewRequest() to get a valid request.
type Request struct {
	Method  string
	Url     string
	Version string

	Headers map[string]string
	Body    []byte

	// Terminated reports whether the header terminator was seen.
	// A request cut short by the peer can still be dispatched on its
	// request line, but it has no body.
	Terminated bool
}

func NewRequest() *Request {
	return &Request{
		Headers: make(map[string]string),
	}
}

// Parse HTTP Request from a tcp conn.
//
// The returned error is ErrEmptyRequest or ErrBadContentLength for framing
// problems, or the underlying read error. On a read error r is left untouched.
func (r *Request) Parse(conn io.Reader) error {
	raw, err := readRequest(conn)
	if err != nil && !errors.Is(err, ErrBadContentLength) {
		return err
	}
	if len(raw) == 0 {
		return ErrEmptyRequest
	}
	r.decode(raw)
	return err
}

// readRequest accumulates bytes from conn, readChunkSize at a time, until
// the request is complete (see requestComplete) or the peer stops sending.
// io.EOF is not an error: whatever arrived before it is returned.
func readRequest(conn io.Reader) ([]byte, error) {
	chunk := make([]byte, readChunkSize)
	var data []byte

	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			data = append(data, chunk[:n]...)

			complete, cerr := requestComplete(data)
			if cerr != nil {
				return data, cerr
			}
			if complete {
				return data, nil
			}
		}
		if errors.Is(err, io.EOF) {
			return data, nil
		}
		if err != nil {
			return data, err
		}
	}
}

// requestComplete reports whether data holds a whole request: the header
// terminator is present and, when a Content-Length is declared, at least
// that many bytes follow it.
// The scan starts from the beginning of data on every call.
func requestComplete(data []byte) (bool, error) {
	end := bytes.Index(data, headerTerminator)
	if end < 0 {
		return false, nil
	}

	v, ok := parseHeaders(data[:end])[textproto.CanonicalMIMEHeaderKey("Content-Length")]
	if !ok {
		return true, nil
	}
	length, err := contentLength(v)
	if err != nil {
		return false, err
	}

	return len(data)-(end+len(headerTerminator)) >= length, nil
}

func contentLength(v string) (int, error) {
	length, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadContentLength, v)
	}
	if length < 0 {
		return 0, fmt.Errorf("%w: %d", ErrBadContentLength, length)
	}
	return length, nil
}

// decode fills r from the raw bytes of a request.
//
// The request line is split on whitespace; missing tokens stay empty.
// The body is everything after the first header terminator, regardless of
// the declared length.
func (r *Request) decode(raw []byte) {
	head := raw
	if end := bytes.Index(raw, headerTerminator); end >= 0 {
		head = raw[:end]
		r.Body = raw[end+len(headerTerminator):]
		r.Terminated = true
	}

	line, _, _ := strings.Cut(string(head), "\r\n")
	fields := strings.Fields(line)
	for i, dst := range []*string{&r.Method, &r.Url, &r.Version} {
		if i < len(fields) {
			*dst = fields[i]
		}
	}

	for k, v := range parseHeaders(head) {
		r.Headers[k] = v
	}
}

// parseHeaders parses the header lines following the request line in head.
// Keys are canonicalized, lines without a colon are ignored.
func parseHeaders(head []byte) map[string]string {
	headers := make(map[string]string)

	lines := strings.Split(string(head), "\r\n")
	for _, line := range lines[1:] {
		if key, value, ok := lineToKV(line); ok {
			headers[textproto.CanonicalMIMEHeaderKey(key)] = value
		}
	}
	return headers
}

// lineToKV parse a line to key-value pair.
func lineToKV(line string) (string, string, bool) {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(value), true
}

// endregion Request

// region Response

// Response is the HTTP response.
// The zero value is NOT valid, call NewResponse() to get a valid response.
type Response struct {
	Version string
	Status  int
	Reason  string

	Headers map[string]string
	Body    *bytes.Buffer

	// dropped responses are never written: the connection is closed silently.
	dropped bool
}

func NewResponse() *Response {
	return &Response{
		Version: ResponseVersion,
		Headers: make(map[string]string),
		Body:    &bytes.Buffer{},
	}
}

// reset discards everything written so far.
func (r *Response) reset() {
	r.Status = 0
	r.Reason = ""
	r.Headers = make(map[string]string)
	r.Body.Reset()
	r.dropped = false
}

// write response to conn.
//
// Content-Type goes first and Content-Length last, the other headers are
// written in between in lexical order.
func (r *Response) write(conn io.Writer) error {
	buf := &bytes.Buffer{}

	// write status line
	fmt.Fprintf(buf, "%s %d %s\r\n", r.Version, r.Status, r.Reason)

	// let's calculate the real content length
	r.Headers["Content-Length"] = strconv.Itoa(r.Body.Len())

	keys := make([]string, 0, len(r.Headers))
	for k := range r.Headers {
		if k != "Content-Type" && k != "Content-Length" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := r.Headers["Content-Type"]; ok {
		keys = append([]string{"Content-Type"}, keys...)
	}
	keys = append(keys, "Content-Length")

	// write headers
	for _, k := range keys {
		fmt.Fprintf(buf, "%s: %s\r\n", k, r.Headers[k])
	}
	buf.WriteString("\r\n")

	// write body
	buf.Write(r.Body.Bytes())

	_, err := conn.Write(buf.Bytes())
	return err
}

// SetStateLine set the state line of the response.
// e.g. HTTP/1.1 200 OK
// The status reason is inferred from the status code.
func (r *Response) SetStateLine(status int) {
	r.Version = ResponseVersion
	r.Status = status
	r.Reason = http.StatusText(status)
}

// endregion Response

// region Context

// Context of a http transaction (request -> handle -> response).
//
//	Context = Request + Response
//
// NOTE: taskboard.Context is not context.Context.
type Context struct {
	Request  *Request
	Response *Response

	handlers            []Handler
	currentHandlerIndex int
}

func NewContext(request *Request, response *Response) *Context {
	return &Context{
		Request:             request,
		Response:            response,
		handlers:            []Handler{},
		currentHandlerIndex: -1,
	}
}

// ResponseText makes a response with status and plain text as body.
func (c *Context) ResponseText(status int, text string) {
	c.ResponseBytes(status, "text/plain", []byte(text))
}

// ResponseJSON makes a response with status and an already encoded JSON
// document as body. The document is written verbatim.
func (c *Context) ResponseJSON(status int, raw []byte) {
	c.ResponseBytes(status, "application/json", raw)
}

// ResponseBytes makes a response with status, content type and body.
// Anything previously written to the body is discarded.
func (c *Context) ResponseBytes(status int, contentType string, body []byte) {
	c.Response.SetStateLine(status)
	c.Response.Headers["Content-Type"] = contentType
	c.Response.Body.Reset()
	_, _ = c.Response.Body.Write(body)
}

// Drop discards the response: the connection is closed without writing
// anything back.
func (c *Context) Drop() {
	c.Response.dropped = true
}

// setChain to a Context, call Next() method to start the chain.
func (c *Context) setChain(chain []Handler) {
	c.handlers = chain
}

// Next call the next handler (middleware) in the chain.
// A middleware should call Next() exactly once to continue the chain.
// the last handler, i.e. the real handler, should not call Next().
func (c *Context) Next() {
	c.currentHandlerIndex++
	for c.currentHandlerIndex < len(c.handlers) {
		// loop in case of a middleware not calling Next()
		c.handlers[c.currentHandlerIndex].ServeHTTP(c)
		c.currentHandlerIndex++
	}
}

// endregion Context

// region Handler

type Handler interface {
	ServeHTTP(c *Context)
}

// The HandlerFunc type is an adapter to allow the use of
// ordinary functions as HTTP handlers. If f is a function
// with the appropriate signature, HandlerFunc(f) is a
// Handler that calls f.
type HandlerFunc func(c *Context)

func (f HandlerFunc) ServeHTTP(c *Context) {
	f(c)
}

// endregion Handler

// region Server

// HttpServer accepts connections one at a time and handles each one to
// completion (read, dispatch, write, close) before accepting the next.
// There is no keep-alive: every response is followed by a close.
type HttpServer struct {
	Handler Handler
	Logger  *slog.Logger

	// ReadTimeout bounds the time spent reading one request.
	// Zero means a silent client can stall the server forever.
	ReadTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

func (s *HttpServer) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// ListenAndServe listen addr, and serve HTTP: handle conn with s.Handler.
// A bind or listen failure is returned wrapped.
func (s *HttpServer) ListenAndServe(addr string) error {
	listen, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(listen)
}

// Serve accepts connections on l until Close is called or Accept fails.
// Serve owns l and closes it before returning.
func (s *HttpServer) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()
	defer l.Close()

	s.logger().Info("listening", "addr", l.Addr().String())

	for {
		conn, err := l.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			s.logger().Error("accept failed", "error", err)
			return fmt.Errorf("accept: %w", err)
		}
		s.handleConn(conn)
	}
}

// Addr returns the listening address, or nil before Serve is called.
func (s *HttpServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops the accept loop. A request in progress is finished first.
func (s *HttpServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *HttpServer) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// handleConn parse a request, create the context,
// handle it with s.Handler, write response back, and close conn.
// NOTE: handleConn is not a Handler.
func (s *HttpServer) handleConn(conn net.Conn) {
	defer closeConn(conn)

	log := s.logger().With("remote", conn.RemoteAddr().String())

	if s.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.ReadTimeout))
	}

	// data flow: request -> context -> handler -> response

	request := NewRequest()
	response := NewResponse()

	if err := request.Parse(conn); err != nil {
		switch {
		case errors.Is(err, ErrEmptyRequest):
			log.Debug("peer closed without a request")
		case errors.Is(err, ErrBadContentLength):
			log.Warn("bad request", "error", err)
			response.SetStateLine(400)
			s.writeResponse(log, conn, response)
		default:
			log.Error("read request failed", "error", err)
		}
		return
	}

	defer func() { // something wrong and not handled by the handler
		if err := recover(); err != nil {
			log.Error("recovered from panic", "panic", err, "stack", string(debug.Stack()))

			// let's try to response a 500, but it's not guaranteed
			response.reset()
			response.SetStateLine(500)
			if DebugPanicResponse {
				_, _ = fmt.Fprintf(response.Body, "panic: %v", err)
			}
			s.writeResponse(log, conn, response)
		}
	}()

	ctx := NewContext(request, response)
	s.Handler.ServeHTTP(ctx)

	if response.dropped {
		log.Debug("response dropped", "method", request.Method, "path", request.Url)
		return
	}
	s.writeResponse(log, conn, response)
}

func (s *HttpServer) writeResponse(log *slog.Logger, conn net.Conn, response *Response) {
	if err := response.write(conn); err != nil {
		log.Error("write response failed", "error", err)
	}
}

// closeConn half-closes conn (when it is TCP) before closing it, so the
// peer sees the end of the response before the connection goes away.
func closeConn(conn net.Conn) {
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	}
	_ = conn.Close()
}

// endregion Server
