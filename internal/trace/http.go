package trace

import "net/http"

// HeaderTraceID carries the trace id on inbound status requests.
const HeaderTraceID = "X-Trace-ID"

// Middleware attaches a trace context to every request, continuing the
// caller's trace when the header is present.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var tc Context
		if id := r.Header.Get(HeaderTraceID); id != "" {
			tc = NewChild(Context{TraceID: id})
		} else {
			tc = New()
		}

		w.Header().Set(HeaderTraceID, tc.TraceID)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), tc)))
	})
}
