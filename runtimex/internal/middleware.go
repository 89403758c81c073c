package internal

import (
	"net/http"
)

// OpsHeaders are set on every response of the health and metrics servers.
type OpsHeaders struct {
	ContentTypeOptions bool // X-Content-Type-Options: nosniff
	FrameOptions       bool // X-Frame-Options: DENY
	NoStore            bool // Cache-Control: no-store
}

// DefaultOpsHeaders enables every header.
func DefaultOpsHeaders() OpsHeaders {
	return OpsHeaders{ContentTypeOptions: true, FrameOptions: true, NoStore: true}
}

// OpsMiddleware applies headers and restricts the operational endpoints to
// read-only methods.
func OpsMiddleware(headers OpsHeaders) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if headers.ContentTypeOptions {
				w.Header().Set("X-Content-Type-Options", "nosniff")
			}
			if headers.FrameOptions {
				w.Header().Set("X-Frame-Options", "DENY")
			}
			if headers.NoStore {
				w.Header().Set("Cache-Control", "no-store")
			}
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				w.Header().Set("Allow", "GET, HEAD")
				writeReport(w, http.StatusMethodNotAllowed, healthReport{Status: "method not allowed"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
