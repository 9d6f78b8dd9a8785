package server

import "net/http"

// OriginChecker gates the websocket upgrade by Origin header. An empty allow
// list accepts every origin, which fits same-host deployments behind a
// gateway.
type OriginChecker struct {
	allowedOrigins map[string]struct{}
}

func NewOriginChecker(allowedOrigins []string) *OriginChecker {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin != "" {
			origins[origin] = struct{}{}
		}
	}

	return &OriginChecker{
		allowedOrigins: origins,
	}
}

func (c *OriginChecker) Check(r *http.Request) bool {
	if len(c.allowedOrigins) == 0 {
		return true
	}

	_, ok := c.allowedOrigins[r.Header.Get("Origin")]

	return ok
}
