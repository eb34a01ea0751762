package httpapi

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"time"
)

const staleWhileRevalidate = 24 * time.Hour

// newStaticHandler serves dir with the client cache policy, or returns nil when
// dir is unset or missing.
func newStaticHandler(dir string, maxAge time.Duration) http.Handler {
	if dir == "" {
		return nil
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil
	}
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", cacheControlFor(r.URL.Path, maxAge))
		files.ServeHTTP(w, r)
	})
}

// cacheControlFor revalidates navigations, the service worker and the manifest
// on every load; other assets are cached for maxAge.
func cacheControlFor(urlPath string, maxAge time.Duration) string {
	base := path.Base(urlPath)
	switch {
	case urlPath == "" || strings.HasSuffix(urlPath, "/"):
		return "no-cache"
	case path.Ext(base) == "" || strings.EqualFold(path.Ext(base), ".html"):
		return "no-cache"
	case base == "sw.js" || base == "manifest.json":
		return "no-cache"
	}
	return fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d",
		int(maxAge.Seconds()), int(staleWhileRevalidate.Seconds()))
}
