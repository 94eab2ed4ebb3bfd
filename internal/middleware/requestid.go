package middleware

import (
	"context"
	"net/http"

	"github.com/rs/xid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// maxInboundRequestID bounds an id supplied by a proxy; anything longer is
// replaced rather than echoed into logs.
const maxInboundRequestID = 64

// RequestID tags every request with an id, reusing a sane X-Request-ID from
// an upstream proxy or minting an xid. The id is echoed on the response and
// stored in the context for the logger.
//
// xid over a UUID: 20 URL-safe characters, sortable by creation time, and no
// coordination needed between instances.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxInboundRequestID {
			id = xid.New().String()
		}

		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the id set by RequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
