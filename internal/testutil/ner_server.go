package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"unicode/utf8"
)

// NERSpan is one span in a fake sidecar response.
type NERSpan struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

// NewNERServer starts an httptest.Server that mimics the NER sidecar.
// GET /health reports status "ok" unless healthy is false. POST /classify
// labels every occurrence of the given names as PER and every occurrence of
// orgs as ORG, with rune offsets like spaCy.
// Caller must call server.Close() or register t.Cleanup(server.Close).
func NewNERServer(healthy bool, names []string, orgs []string) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if !healthy {
			status = "model_missing"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status, "model": "pt_core_news_lg"})
	})
	mux.HandleFunc("/classify", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var spans []NERSpan
		spans = append(spans, findSpans(req.Text, names, "PER")...)
		spans = append(spans, findSpans(req.Text, orgs, "ORG")...)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"spans": spans})
	})
	return httptest.NewServer(mux)
}

func findSpans(text string, values []string, label string) []NERSpan {
	var out []NERSpan
	for _, v := range values {
		for from := 0; ; {
			i := strings.Index(text[from:], v)
			if i < 0 {
				break
			}
			start := from + i
			runeStart := utf8.RuneCountInString(text[:start])
			out = append(out, NERSpan{
				Start: runeStart,
				End:   runeStart + utf8.RuneCountInString(v),
				Label: label,
				Text:  v,
			})
			from = start + len(v)
		}
	}
	return out
}
