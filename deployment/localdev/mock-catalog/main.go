package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"
)

// rejectedKey is refused with 401 so the credential error path can be exercised.
const rejectedKey = "rejected-key"

type listedDataset struct {
	Ref      string `json:"ref"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

type datasetFile struct {
	Name       string `json:"name"`
	TotalBytes int64  `json:"totalBytes"`
}

type dataset struct {
	listedDataset
	files map[string][]byte
	// zipped files are served as a zip archive holding the CSV.
	zipped bool
}

func main() {
	datasets := buildDatasets()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v1/datasets/list", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		query := strings.ToLower(r.URL.Query().Get("search"))
		out := []listedDataset{}
		for _, ds := range datasets {
			if query == "" || strings.Contains(strings.ToLower(ds.Title+" "+ds.Ref), query) {
				out = append(out, ds.listedDataset)
			}
		}
		writeJSON(w, out)
	})

	mux.HandleFunc("/api/v1/datasets/list/", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		ds, ok := datasets[strings.TrimPrefix(r.URL.Path, "/api/v1/datasets/list/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		files := []datasetFile{}
		for name, body := range ds.files {
			files = append(files, datasetFile{Name: name, TotalBytes: int64(len(body))})
		}
		writeJSON(w, map[string]any{"datasetFiles": files})
	})

	mux.HandleFunc("/api/v1/datasets/download/", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		rest := strings.TrimPrefix(r.URL.Path, "/api/v1/datasets/download/")
		idx := strings.LastIndex(rest, "/")
		if idx < 0 {
			http.NotFound(w, r)
			return
		}
		ds, ok := datasets[rest[:idx]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		name := rest[idx+1:]
		body, ok := ds.files[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if ds.zipped {
			archive, err := zipFile(name, body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/zip")
			_, _ = w.Write(archive)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write(body)
	})

	addr := ":8090"
	if v := os.Getenv("MOCK_CATALOG_ADDR"); v != "" {
		addr = v
	}
	logger := log.New(log.Writer(), "catalog-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:              addr,
		Handler:           logRequests(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Printf("listening on %s (set KAGGLE_BASE_URL=http://localhost%s/api/v1)", addr, addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func buildDatasets() map[string]dataset {
	rng := rand.New(rand.NewSource(42))

	var cities strings.Builder
	cities.WriteString("city,population\n")
	for i := 0; i < 500; i++ {
		// log-uniform across five orders of magnitude
		fmt.Fprintf(&cities, "city-%03d,%d\n", i, int(math.Pow(10, 2+5*rng.Float64())))
	}

	var invoices strings.Builder
	invoices.WriteString("invoice,amount,currency\n")
	for i := 0; i < 400; i++ {
		// clustered just under an approval threshold
		fmt.Fprintf(&invoices, "INV-%05d,%.2f,EUR\n", i, 4500+rng.Float64()*499)
	}

	var tweets strings.Builder
	tweets.WriteString("id,text\n")
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&tweets, "%d,no numbers here\n", i)
	}

	list := []dataset{
		{
			listedDataset: listedDataset{Ref: "localdev/world-city-population", Title: "World City Population", Subtitle: "Census counts per city"},
			files:         map[string][]byte{"cities.csv": []byte(cities.String())},
		},
		{
			listedDataset: listedDataset{Ref: "localdev/invoice-amounts", Title: "Invoice Amounts", Subtitle: "Zipped accounts payable extract"},
			files:         map[string][]byte{"invoices.csv": []byte(invoices.String())},
			zipped:        true,
		},
		{
			listedDataset: listedDataset{Ref: "localdev/tweets", Title: "Tweets", Subtitle: "Short text posts"},
			files:         map[string][]byte{"tweets.csv": []byte(tweets.String())},
		},
	}
	out := make(map[string]dataset, len(list))
	for _, ds := range list {
		out[ds.Ref] = ds
	}
	return out
}

func authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	user, key, ok := r.BasicAuth()
	if !ok || user == "" || key == "" || key == rejectedKey {
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	return true
}

func zipFile(name string, body []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create(name)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(body); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
