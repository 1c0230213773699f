package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperifyio/ptsnap/internal/cache"
)

func BenchmarkClient_Get(b *testing.B) {
	body := []byte("<html><body>" + fmt.Sprint(make([]int, 2000)) + "</body></html>")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	for _, cached := range []bool{false, true} {
		b.Run(fmt.Sprintf("cached=%v", cached), func(b *testing.B) {
			c := &Client{MaxAttempts: 1, PerRequestTimeout: 5 * time.Second}
			if cached {
				c.Cache = &cache.PageCache{Dir: b.TempDir()}
			}
			ctx := context.Background()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, _, err := c.Get(ctx, srv.URL); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
