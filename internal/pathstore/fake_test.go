package pathstore

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// fakeServer is an in-memory pathstore. Keys are stored dot-separated, the
// way the real server reports key_path.
type fakeServer struct {
	mu       sync.Mutex
	apiKey   string
	nodes    map[string]any
	requests int
}

func newFakeServer(apiKey string) *fakeServer {
	return &fakeServer{apiKey: apiKey, nodes: make(map[string]any)}
}

func dotted(key string) string {
	return strings.ReplaceAll(key, "/", ".")
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++

	if r.Header.Get("Authorization") != "Bearer "+f.apiKey {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
		return
	}
	key, ok := strings.CutPrefix(r.URL.Path, "/kv/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		if prefix, ok := strings.CutSuffix(key, "/*"); ok {
			f.list(w, r, dotted(prefix)+".")
			return
		}
		v, ok := f.nodes[dotted(key)]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(Node{Key: dotted(key), Value: v})

	case http.MethodPut:
		var req NodeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.nodes[dotted(key)] = req.Value
		w.WriteHeader(http.StatusCreated)

	case http.MethodDelete:
		k := dotted(key)
		deleted := 0
		if _, ok := f.nodes[k]; ok {
			delete(f.nodes, k)
			deleted++
		}
		if r.URL.Query().Get("children") == "true" {
			for nk := range f.nodes {
				if strings.HasPrefix(nk, k+".") {
					delete(f.nodes, nk)
					deleted++
				}
			}
		}
		if deleted == 0 {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeServer) list(w http.ResponseWriter, r *http.Request, prefix string) {
	var keys []string
	for k := range f.nodes {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n < len(keys) {
		keys = keys[:n]
	}

	nodes := make([]Node, 0, len(keys))
	for _, k := range keys {
		nodes = append(nodes, Node{Key: k, Value: f.nodes[k]})
	}
	json.NewEncoder(w).Encode(map[string]any{"nodes": nodes})
}
