package remote

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// nextLink extracts the rel="next" target from an RFC 8288 Link header:
//
//	<https://api.github.com/repositories/1/tags?page=2>; rel="next", <...>; rel="last"
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segs := strings.Split(part, ";")
		if len(segs) < 2 {
			continue
		}

		target := strings.TrimSpace(segs[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}

		for _, p := range segs[1:] {
			key, val, ok := strings.Cut(strings.TrimSpace(p), "=")
			if !ok || strings.TrimSpace(key) != "rel" {
				continue
			}

			for _, rel := range strings.Fields(strings.Trim(strings.TrimSpace(val), `"`)) {
				if rel == "next" {
					return target[1 : len(target)-1]
				}
			}
		}
	}

	return ""
}

// statusDetail renders the API error message and rate-limit state of a
// non-2xx response. The body is read with a small cap.
func statusDetail(resp *http.Response) string {
	parts := make([]string, 0, 2)

	var payload struct {
		Message string `json:"message"`
	}
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<10)); err == nil {
		if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
			parts = append(parts, payload.Message)
		}
	}

	if resp.Header.Get("X-RateLimit-Remaining") == "0" {
		hint := "rate limit exceeded"
		if reset, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
			hint += fmt.Sprintf(", resets at %s", time.Unix(reset, 0).UTC().Format(time.RFC3339))
		}
		parts = append(parts, hint)
	}

	if len(parts) == 0 {
		return resp.Status
	}

	return strings.Join(parts, "; ")
}
