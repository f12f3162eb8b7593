package lua

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/sanasol-ws/dualauth/internal/httpfixture"
)

func newFixtureHTTPService(t *testing.T, provider httpfixture.FixtureProvider, opts RequestOptions) *HTTPService {
	t.Helper()
	transport := httpfixture.NewTransport(httpfixture.TransportConfig{
		Provider: provider,
		Strict:   true,
	})
	return NewHTTPServiceWithConfig(HTTPServiceConfig{
		Transport:      transport,
		RequestOptions: opts,
	})
}

func runScript(t *testing.T, svc *HTTPService, script string) lua.LValue {
	t.Helper()
	L := lua.NewState()
	defer L.Close()
	svc.Register(L)
	NewJSONService().Register(L)

	require.NoError(t, L.DoString(script))
	return L.GetGlobal("result")
}

func TestHTTPService_Get(t *testing.T) {
	provider := httpfixture.NewFuncProvider(func(req *http.Request) *httpfixture.Fixture {
		if req.Method == http.MethodGet && req.URL.String() == "https://api.example.com/player/p-1" {
			return &httpfixture.Fixture{
				StatusCode: 200,
				Headers:    map[string]string{"Content-Type": "application/json"},
				Body:       `{"tier":"founder"}`,
			}
		}
		return nil
	})
	svc := newFixtureHTTPService(t, provider, nil)

	result := runScript(t, svc, `
		local response = http.get("https://api.example.com/player/p-1")
		result = response.status .. "|" .. response.body .. "|" .. response.headers["Content-Type"]
	`)
	assert.Equal(t, `200|{"tier":"founder"}|application/json`, result.String())
}

func TestHTTPService_PostSendsBodyAndHeaders(t *testing.T) {
	var gotBody, gotContentType string
	provider := httpfixture.NewFuncProvider(func(req *http.Request) *httpfixture.Fixture {
		if req.Method != http.MethodPost {
			return nil
		}
		data, _ := io.ReadAll(req.Body)
		gotBody = string(data)
		gotContentType = req.Header.Get("Content-Type")
		return &httpfixture.Fixture{StatusCode: 201, Body: "created"}
	})
	svc := newFixtureHTTPService(t, provider, nil)

	result := runScript(t, svc, `
		local response = http.post(
			"https://api.example.com/player",
			json.encode({name = "Player"}),
			{["Content-Type"] = "application/json"})
		result = response.status
	`)
	assert.Equal(t, "201", result.String())
	assert.JSONEq(t, `{"name":"Player"}`, gotBody)
	assert.Equal(t, "application/json", gotContentType)
}

func TestHTTPService_RequestArbitraryMethod(t *testing.T) {
	provider := httpfixture.NewFuncProvider(func(req *http.Request) *httpfixture.Fixture {
		if req.Method == http.MethodDelete {
			return &httpfixture.Fixture{StatusCode: 204}
		}
		return nil
	})
	svc := newFixtureHTTPService(t, provider, nil)

	result := runScript(t, svc, `
		local response = http.request("DELETE", "https://api.example.com/player/p-1")
		result = response.status
	`)
	assert.Equal(t, "204", result.String())
}

func TestHTTPService_RequestOptionsAddAuth(t *testing.T) {
	var gotAuth string
	provider := httpfixture.NewFuncProvider(func(req *http.Request) *httpfixture.Fixture {
		gotAuth = req.Header.Get("Authorization")
		return &httpfixture.Fixture{StatusCode: 200, Body: "ok"}
	})
	svc := newFixtureHTTPService(t, provider, func(req *http.Request) error {
		req.Header.Set("Authorization", "Bearer service-token")
		return nil
	})

	runScript(t, svc, `
		local response = http.get("https://api.example.com/player/p-1")
		result = response.status
	`)
	assert.Equal(t, "Bearer service-token", gotAuth)
}

func TestHTTPService_UnmatchedRequestReturnsError(t *testing.T) {
	provider := httpfixture.NewFuncProvider(func(*http.Request) *httpfixture.Fixture {
		return nil
	})
	svc := newFixtureHTTPService(t, provider, nil)

	result := runScript(t, svc, `
		local response, err = http.get("https://api.example.com/unknown")
		if response == nil and err ~= nil then
			result = "errored"
		end
	`)
	assert.Equal(t, "errored", result.String())
}

func TestJSONService_RoundTrip(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	NewJSONService().Register(L)

	require.NoError(t, L.DoString(`
		local data = json.decode('{"name":"Player","tags":["a","b"],"count":2}')
		result = data.name .. "|" .. data.tags[2] .. "|" .. data.count
	`))
	assert.Equal(t, "Player|b|2", L.GetGlobal("result").String())
}

func TestConfigService_Get(t *testing.T) {
	L := lua.NewState()
	defer L.Close()
	NewConfigService(NewMapConfigSource(map[string]string{
		"profile_api_url": "https://api.example.com",
	})).Register(L)

	require.NoError(t, L.DoString(`
		result = config.get("profile_api_url") or "unset"
		missing = config.get("nope") or "unset"
	`))
	assert.Equal(t, "https://api.example.com", L.GetGlobal("result").String())
	assert.Equal(t, "unset", L.GetGlobal("missing").String())
}
