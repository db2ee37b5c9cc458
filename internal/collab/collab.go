// Package collab implements the rule engine's external-collaborator
// seam: the opaque, string-keyed handler tables that a GRL action's
// "handler(args...)" form invokes, plus an HTTP handler backed by the
// teacher's breaker-aware transport and an opt-in otto script handler.
//
// Grounded on core/http.go (the HTTPBreakers map and timeout-sensitive
// http.Client construction) and service/nanomsg.go (a small, named
// struct of URL/prefix fields representing one external channel) —
// this package keeps that "small struct plus registered-by-name
// handler" shape but drops the live mangos/nanomsg transport, which
// isn't in this module's dependency set, in favor of a pluggable
// func(args) (Value, error) registered under a handler name. The
// NATS-shaped config below is carried as data only, per
// SUPPLEMENTED FEATURES item 6: no NATS client is wired.
package collab

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/robertkrimen/otto"

	"github.com/grl-engine/grlrules/internal/value"
)

// Handler is an action-side collaborator invocation: given the
// already-evaluated argument Values, perform a side effect and
// optionally return a Value (handler calls discard it in action
// position; Table.Call returns it to its own caller).
type Handler func(args []value.Value) (value.Value, error)

// Table is a registry of named handlers, one per engine instance so
// tests and concurrent sessions don't share global mutable state.
type Table struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewTable() *Table {
	return &Table{handlers: map[string]Handler{}}
}

// Register adds or replaces the handler for name.
func (t *Table) Register(name string, h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[name] = h
}

// Call invokes the handler registered under name. Returns a
// NotFoundError-shaped failure (via a plain error; the engine layer
// maps collaborator failures to EXECUTION_FAILED) if name isn't
// registered.
func (t *Table) Call(name string, args []value.Value) (value.Value, error) {
	t.mu.RLock()
	h, ok := t.handlers[name]
	t.mu.RUnlock()
	if !ok {
		return value.Null(), fmt.Errorf("collab: no handler registered for %q", name)
	}
	return h(args)
}

// Names lists every registered handler name.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.handlers))
	for n := range t.handlers {
		names = append(names, n)
	}
	return names
}

// breakers tracks per-URL open-circuit state, mirroring core/http.go's
// package-level HTTPBreakers map (simplified: an open-until timestamp
// per URL rather than the teacher's full OutboundBreaker struct, since
// this engine doesn't carry the teacher's retry/backoff scheduler).
var breakers = struct {
	mu   sync.Mutex
	open map[string]time.Time
}{open: map[string]time.Time{}}

const breakerCooldown = 30 * time.Second

func breakerOpen(uri string) bool {
	breakers.mu.Lock()
	defer breakers.mu.Unlock()
	until, tripped := breakers.open[uri]
	if !tripped {
		return false
	}
	if time.Now().After(until) {
		delete(breakers.open, uri)
		return false
	}
	return true
}

func tripBreaker(uri string) {
	breakers.mu.Lock()
	defer breakers.mu.Unlock()
	breakers.open[uri] = time.Now().Add(breakerCooldown)
}

// httpClient is shared across HTTP handler registrations so
// connections and TLS session state get reused, per core/http.go's
// stated rationale for not constructing a Transport per request.
var httpClient = &http.Client{
	Timeout: 5 * time.Second,
	Transport: &http.Transport{
		TLSClientConfig: &tls.Config{},
	},
}

// HTTPHandler returns a Handler that POSTs a JSON-encoded body built
// from args to baseURL, short-circuiting via a breaker if the
// endpoint tripped recently. args[0] is the URL path appended to
// baseURL; the remaining args are JSON-stringified into the request
// body under "args".
func HTTPHandler(baseURL string) Handler {
	return func(args []value.Value) (value.Value, error) {
		if len(args) == 0 || args[0].Kind != value.KindString {
			return value.Null(), fmt.Errorf("collab: http handler requires a path as its first argument")
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return value.Null(), fmt.Errorf("collab: invalid base URL %q: %w", baseURL, err)
		}
		u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(args[0].Str, "/")
		uri := u.String()

		if breakerOpen(uri) {
			return value.Null(), fmt.Errorf("collab: circuit open for %s", uri)
		}

		rest := make([]interface{}, 0, len(args)-1)
		for _, a := range args[1:] {
			rest = append(rest, scriptArg(a))
		}
		body, err := json.Marshal(map[string]interface{}{"args": rest})
		if err != nil {
			return value.Null(), fmt.Errorf("collab: encoding request body: %w", err)
		}
		resp, err := httpClient.Post(uri, "application/json", bytes.NewReader(body))
		if err != nil {
			tripBreaker(uri)
			return value.Null(), fmt.Errorf("collab: http request to %s: %w", uri, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			tripBreaker(uri)
		}
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return value.Null(), fmt.Errorf("collab: reading response from %s: %w", uri, err)
		}
		if resp.StatusCode >= 400 {
			return value.Null(), fmt.Errorf("collab: %s returned status %d: %s", uri, resp.StatusCode, respBody)
		}
		if len(respBody) == 0 {
			return value.Null(), nil
		}
		return value.FromJSON(respBody)
	}
}

// ScriptHandler returns a Handler that evaluates src as an otto
// Javascript program, binding args as a global "args" array and
// returning its final expression value. This is the engine's single,
// explicit opt-in escape hatch into general scripting (§9's "Otto
// script handler" design note): it is never invoked implicitly by
// condition or action evaluation, only by a GRL action naming this
// handler by name.
func ScriptHandler(src string) Handler {
	return func(args []value.Value) (value.Value, error) {
		vm := otto.New()
		raw := make([]interface{}, len(args))
		for i, a := range args {
			raw[i] = scriptArg(a)
		}
		if err := vm.Set("args", raw); err != nil {
			return value.Null(), fmt.Errorf("collab: binding script args: %w", err)
		}
		result, err := vm.Run(src)
		if err != nil {
			return value.Null(), fmt.Errorf("collab: script execution: %w", err)
		}
		exported, err := result.Export()
		if err != nil {
			return value.Null(), fmt.Errorf("collab: exporting script result: %w", err)
		}
		bs, err := json.Marshal(exported)
		if err != nil {
			return value.Null(), fmt.Errorf("collab: script result not representable as JSON: %w", err)
		}
		return value.FromJSON(bs)
	}
}

func scriptArg(v value.Value) interface{} {
	bs, err := value.ToJSON(v)
	if err != nil {
		return nil
	}
	var out interface{}
	_ = json.Unmarshal(bs, &out)
	return out
}

// MessagingConfig mirrors the NATS client's connection surface, per
// SUPPLEMENTED FEATURES item 6. It is carried purely as data: no NATS
// dependency is imported anywhere in this module, since the teacher's
// only live messaging transport is nanomsg/mangos, which isn't in this
// module's dependency set either.
type MessagingConfig struct {
	URL              string        `yaml:"url"`
	Subject          string        `yaml:"subject"`
	PoolSize         int           `yaml:"pool_size"`
	ReconnectWait    time.Duration `yaml:"reconnect_wait"`
	MaxReconnects    int           `yaml:"max_reconnects"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	AllowReconnect   bool          `yaml:"allow_reconnect"`
}
