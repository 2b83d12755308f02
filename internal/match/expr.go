package match

import (
	"net/http"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// programCache holds compiled rule expressions keyed by source. Rule sets
// are small and change only on a full-set replace, so the cache is never
// explicitly invalidated; stale entries are just unused.
var (
	programMu    sync.RWMutex
	programCache = make(map[string]*vm.Program)
)

// matchExpr evaluates a rule expression against a snapshot of the
// request. The environment exposes method, path, headers, query, and the
// raw body as a string. Any compile or runtime error means no match.
func matchExpr(src string, r *http.Request, body []byte) bool {
	program, err := compileExpr(src)
	if err != nil {
		return false
	}

	headers := make(map[string]string, len(r.Header))
	for name := range r.Header {
		headers[name] = r.Header.Get(name)
	}
	query := make(map[string]string)
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			query[name] = values[0]
		}
	}

	env := map[string]any{
		"method":  r.Method,
		"path":    r.URL.Path,
		"headers": headers,
		"query":   query,
		"body":    string(body),
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false
	}
	matched, ok := out.(bool)
	return ok && matched
}

func compileExpr(src string) (*vm.Program, error) {
	programMu.RLock()
	program, ok := programCache[src]
	programMu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := expr.Compile(src, expr.AsBool())
	if err != nil {
		return nil, err
	}

	programMu.Lock()
	programCache[src] = program
	programMu.Unlock()
	return program, nil
}
