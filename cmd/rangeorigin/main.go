// Command rangeorigin is a demo HTTP origin serving a single file with
// byte-range support and per-IP rate limiting, used to exercise the
// ranged-HTTP Source Adapter (internal/source.HTTP) in integration tests
// and manual testing.
package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

func main() {
	addr := flag.String("addr", ":8089", "listen address")
	file := flag.String("file", "", "path to the file served at /media")
	rps := flag.Int("rps", 120, "requests allowed per minute per client IP")
	flag.Parse()

	if *file == "" {
		log.Fatal("rangeorigin: -file is required")
	}

	r := chi.NewRouter()
	r.Use(httprate.Limit(
		*rps,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		}),
	))

	r.Get("/media", mediaHandler(*file))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	log.Printf("rangeorigin: serving %s as /media on %s", *file, *addr)
	log.Fatal(http.ListenAndServe(*addr, r))
}

// mediaHandler delegates range negotiation to http.ServeFile, which
// already implements RFC 7233 correctly (206 Partial Content, multipart
// ranges, If-Range) — the ranged-HTTP source adapter under test exercises
// this path directly.
func mediaHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, path)
	}
}
