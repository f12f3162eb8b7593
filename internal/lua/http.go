// Package lua exposes narrow host services to profile-fetching Lua
// scripts: an HTTP client, configuration lookup, and JSON codecs.
package lua

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultHTTPTimeout bounds outbound requests made by scripts.
const DefaultHTTPTimeout = 30 * time.Second

// RequestOptions can modify a request before it is sent, for example to
// attach authentication headers.
type RequestOptions func(*http.Request) error

// HTTPServiceConfig configures the HTTP service
type HTTPServiceConfig struct {
	// Timeout for HTTP requests (defaults to DefaultHTTPTimeout)
	Timeout time.Duration

	// RequestOptions processes requests before sending
	RequestOptions RequestOptions

	// Transport overrides http.DefaultTransport, mainly for tests
	Transport http.RoundTripper
}

// HTTPService provides HTTP client functionality to Lua scripts.
//
// Usage in Lua:
//
//	local response = http.get("https://api.example.com/player/" .. input.subject)
//	local response = http.post(url, body, {["Content-Type"] = "application/json"})
//	local response = http.request("PUT", url, body, headers)
//
// Each call returns a response table {status=int, body=string,
// headers=table}, or nil plus an error string.
type HTTPService struct {
	client         *http.Client
	requestOptions RequestOptions
}

// NewHTTPService creates an HTTP service with the given timeout and
// default transport.
func NewHTTPService(timeout time.Duration) *HTTPService {
	return NewHTTPServiceWithConfig(HTTPServiceConfig{Timeout: timeout})
}

// NewHTTPServiceWithConfig creates an HTTP service with full configuration
func NewHTTPServiceWithConfig(config HTTPServiceConfig) *HTTPService {
	if config.Timeout == 0 {
		config.Timeout = DefaultHTTPTimeout
	}
	transport := config.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &HTTPService{
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		requestOptions: config.RequestOptions,
	}
}

// Register adds the http module to the Lua state
func (s *HTTPService) Register(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "get", L.NewFunction(s.luaGet))
	L.SetField(mod, "post", L.NewFunction(s.luaPost))
	L.SetField(mod, "request", L.NewFunction(s.luaRequest))
	L.SetGlobal("http", mod)
}

// luaGet implements http.get(url, [headers])
func (s *HTTPService) luaGet(L *lua.LState) int {
	url := L.CheckString(1)
	headers := parseHeaders(L, 2)
	return s.perform(L, http.MethodGet, url, "", headers)
}

// luaPost implements http.post(url, body, [headers])
func (s *HTTPService) luaPost(L *lua.LState) int {
	url := L.CheckString(1)
	body := L.CheckString(2)
	headers := parseHeaders(L, 3)
	return s.perform(L, http.MethodPost, url, body, headers)
}

// luaRequest implements http.request(method, url, [body], [headers])
func (s *HTTPService) luaRequest(L *lua.LState) int {
	method := L.CheckString(1)
	url := L.CheckString(2)
	body := L.OptString(3, "")
	headers := parseHeaders(L, 4)
	return s.perform(L, method, url, body, headers)
}

// perform runs one request and pushes either a response table or nil plus
// an error string.
func (s *HTTPService) perform(L *lua.LState, method, url, body string, headers map[string]string) int {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return pushError(L, fmt.Sprintf("failed to create request: %v", err))
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if s.requestOptions != nil {
		if err := s.requestOptions(req); err != nil {
			return pushError(L, fmt.Sprintf("request options failed: %v", err))
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return pushError(L, fmt.Sprintf("request failed: %v", err))
	}
	defer func() { _ = resp.Body.Close() }()

	L.Push(responseToLua(L, resp))
	return 1
}

func pushError(L *lua.LState, msg string) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(msg))
	return 2
}

// parseHeaders converts an optional Lua table argument to a header map
func parseHeaders(L *lua.LState, arg int) map[string]string {
	headers := make(map[string]string)
	if L.GetTop() < arg {
		return headers
	}
	lv := L.Get(arg)
	tbl, ok := lv.(*lua.LTable)
	if !ok {
		return headers
	}
	tbl.ForEach(func(key, value lua.LValue) {
		if key.Type() == lua.LTString && value.Type() == lua.LTString {
			headers[key.String()] = value.String()
		}
	})
	return headers
}

// responseToLua converts an HTTP response to a Lua table
func responseToLua(L *lua.LState, resp *http.Response) *lua.LTable {
	tbl := L.NewTable()
	L.SetField(tbl, "status", lua.LNumber(resp.StatusCode))

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		L.SetField(tbl, "body", lua.LString(""))
		L.SetField(tbl, "error", lua.LString(fmt.Sprintf("failed to read body: %v", err)))
	} else {
		L.SetField(tbl, "body", lua.LString(string(bodyBytes)))
	}

	headersTbl := L.NewTable()
	for key, values := range resp.Header {
		if len(values) > 0 {
			L.SetField(headersTbl, key, lua.LString(values[0]))
		}
	}
	L.SetField(tbl, "headers", headersTbl)

	return tbl
}
