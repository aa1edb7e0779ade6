package search

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/FranksOps/foxeye/internal/metrics"
)

// Handler builds the mux serving spec.md §4.4's HTTP surface: POST /search
// and a GET / health check.
func Handler(s *Searcher) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Hello, World! from foxeye search"))
	})
	mux.HandleFunc("POST /search", searchHandler(s))
	return mux
}

func searchHandler(s *Searcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() { metrics.SearchLatency.Observe(time.Since(start).Seconds()) }()

		var input Input
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if input.Limit <= 0 {
			input.Limit = 10
		}

		results, err := s.Search(r.Context(), input)
		if err != nil {
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(results)
	}
}
