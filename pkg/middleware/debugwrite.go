package middleware

import (
	"net/http"
	"runtime/debug"
	"sync/atomic"

	"go.uber.org/zap"
)

// DebugWriteHeader logs a stack trace if WriteHeader is called more than once.
// Enabled with DEBUG_DOUBLE_WRITE=true.
func DebugWriteHeader(enabled bool, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	if !enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	log.Infow("debug double-write middleware enabled")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dw := &dwrapper{ResponseWriter: w, method: r.Method, path: r.URL.Path, log: log}
			next.ServeHTTP(dw, r)
		})
	}
}

type dwrapper struct {
	http.ResponseWriter
	wrote  int32
	method string
	path   string
	code   int
	log    *zap.SugaredLogger
}

func (d *dwrapper) WriteHeader(code int) {
	if atomic.CompareAndSwapInt32(&d.wrote, 0, 1) {
		d.code = code
		d.ResponseWriter.WriteHeader(code)
		return
	}
	d.log.Warnw("double WriteHeader", "method", d.method, "path", d.path, "first", d.code, "second", code, "stack", string(debug.Stack()))
}

func (d *dwrapper) Write(b []byte) (int, error) {
	if atomic.LoadInt32(&d.wrote) == 0 {
		d.WriteHeader(http.StatusOK)
	}
	return d.ResponseWriter.Write(b)
}

func (d *dwrapper) Unwrap() http.ResponseWriter { return d.ResponseWriter }
