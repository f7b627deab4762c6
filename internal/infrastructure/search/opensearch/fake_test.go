package opensearch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	opensearchgo "github.com/opensearch-project/opensearch-go/v2"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
)

// fakeCluster is a single-index, in-memory stand-in for the OpenSearch REST
// endpoints the store uses.
type fakeCluster struct {
	mu      sync.Mutex
	index   string
	exists  bool
	docs    map[string]json.RawMessage
	scrolls map[string][]string
	sizes   map[string]int
	nextID  int
	// bulkFail makes bulk items with this id fail
	bulkFail string
	requests []string
}

func newFakeCluster(index string) *fakeCluster {
	return &fakeCluster{
		index:   index,
		docs:    map[string]json.RawMessage{},
		scrolls: map[string][]string{},
		sizes:   map[string]int{},
	}
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	body, _ := io.ReadAll(r.Body)
	path := r.URL.Path
	idxPrefix := "/" + f.index

	switch {
	case path == "/" && (r.Method == http.MethodHead || r.Method == http.MethodGet):
		writeJSON(w, http.StatusOK, map[string]interface{}{"version": map[string]string{"number": "2.11.0"}})
	case path == "/_bulk":
		f.bulk(w, body)
	case strings.HasPrefix(path, "/_search/scroll"):
		if r.Method == http.MethodDelete {
			writeJSON(w, http.StatusOK, map[string]bool{"succeeded": true})
			return
		}
		id := r.URL.Query().Get("scroll_id")
		if id == "" {
			var req struct {
				ScrollID string `json:"scroll_id"`
			}
			_ = json.Unmarshal(body, &req)
			id = req.ScrollID
		}
		f.page(w, id, 0)
	case path == idxPrefix && r.Method == http.MethodHead:
		if f.exists {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case path == idxPrefix && r.Method == http.MethodPut:
		f.exists = true
		writeJSON(w, http.StatusOK, map[string]bool{"acknowledged": true})
	case strings.HasPrefix(path, idxPrefix+"/_doc/"):
		id := strings.TrimPrefix(path, idxPrefix+"/_doc/")
		src, ok := f.docs[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{"_id": id, "found": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"_id": id, "found": true, "_source": src})
	case path == idxPrefix+"/_count":
		ids, err := f.match(body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": map[string]string{"type": "parse_exception", "reason": err.Error()}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"count": len(ids)})
	case path == idxPrefix+"/_search":
		ids, err := f.match(body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": map[string]string{"type": "parse_exception", "reason": err.Error()}})
			return
		}
		var req struct {
			Size int `json:"size"`
		}
		_ = json.Unmarshal(body, &req)
		f.nextID++
		scrollID := fmt.Sprintf("scroll-%d", f.nextID)
		f.scrolls[scrollID] = ids
		f.page(w, scrollID, req.Size)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": map[string]string{"type": "unsupported", "reason": r.Method + " " + path}})
	}
}

func (f *fakeCluster) page(w http.ResponseWriter, scrollID string, size int) {
	if size > 0 {
		f.sizes[scrollID] = size
	}
	size = f.sizes[scrollID]
	rest := f.scrolls[scrollID]
	n := size
	if n > len(rest) {
		n = len(rest)
	}
	hits := make([]map[string]string, n)
	for i := 0; i < n; i++ {
		hits[i] = map[string]string{"_id": rest[i]}
	}
	f.scrolls[scrollID] = rest[n:]
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"_scroll_id": scrollID,
		"hits":       map[string]interface{}{"hits": hits},
	})
}

func (f *fakeCluster) match(body []byte) ([]string, error) {
	var req struct {
		Query map[string]map[string]json.RawMessage `json:"query"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	var want []string
	all := false
	switch {
	case req.Query["match_all"] != nil:
		all = true
	case req.Query["terms"] != nil:
		if err := json.Unmarshal(req.Query["terms"]["terms"], &want); err != nil {
			return nil, err
		}
	case req.Query["term"] != nil:
		var one string
		if err := json.Unmarshal(req.Query["term"]["terms"], &one); err != nil {
			return nil, err
		}
		want = []string{one}
	default:
		return nil, fmt.Errorf("unsupported query")
	}

	var ids []string
	for id, src := range f.docs {
		if all {
			ids = append(ids, id)
			continue
		}
		var doc struct {
			Terms []string `json:"terms"`
		}
		_ = json.Unmarshal(src, &doc)
	found:
		for _, t := range doc.Terms {
			for _, w := range want {
				if t == w {
					ids = append(ids, id)
					break found
				}
			}
		}
	}
	// reverse order so that callers cannot rely on server ordering
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

func (f *fakeCluster) bulk(w http.ResponseWriter, body []byte) {
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 1<<20), 1<<24)
	var items []map[string]interface{}
	hasErrors := false
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var meta map[string]struct {
			ID string `json:"_id"`
		}
		if err := json.Unmarshal(line, &meta); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": map[string]string{"type": "parse_exception", "reason": err.Error()}})
			return
		}
		for action, m := range meta {
			status := http.StatusOK
			item := map[string]interface{}{"_id": m.ID}
			switch action {
			case "index":
				if !sc.Scan() {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing source"})
					return
				}
				src := append(json.RawMessage(nil), sc.Bytes()...)
				if m.ID == f.bulkFail {
					status = http.StatusBadRequest
					item["error"] = map[string]string{"type": "mapper_parsing_exception", "reason": "failed to parse"}
					hasErrors = true
				} else {
					f.docs[m.ID] = src
				}
			case "delete":
				if _, ok := f.docs[m.ID]; !ok {
					status = http.StatusNotFound
					hasErrors = true
				}
				delete(f.docs, m.ID)
			}
			item["status"] = status
			items = append(items, map[string]interface{}{action: item})
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"errors": hasErrors, "items": items})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newTestClient builds a Client against url without the initial ping.
func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	osClient, err := opensearchgo.NewClient(opensearchgo.Config{Addresses: []string{url}})
	require.NoError(t, err)
	c := &Client{
		client: osClient,
		config: ClientConfig{Addresses: []string{url}},
		logger: logging.NewNopLogger(),
		cancel: func() {},
	}
	c.healthy.Store(true)
	return c
}

func newFakeServer(t *testing.T, f *fakeCluster) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return srv
}
