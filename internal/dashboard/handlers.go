package dashboard

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tkingovr/toolbridge/api"
	"github.com/tkingovr/toolbridge/internal/policy"
)

const ledgerPageSize = 100

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	stats, err := s.auditStore.Stats(r.Context())
	if err != nil {
		http.Error(w, "failed to get stats", http.StatusInternalServerError)
		return
	}

	data := map[string]any{
		"Page":  "overview",
		"Stats": stats,
	}
	renderPage(w, "overview", data)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	records, err := s.auditStore.Query(r.Context(), api.QueryFilter{})
	if err != nil {
		http.Error(w, "failed to query ledger", http.StatusInternalServerError)
		return
	}
	if len(records) > ledgerPageSize {
		records = records[len(records)-ledgerPageSize:]
	}

	// Reverse to show newest first
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	rows := make([]template.HTML, 0, len(records))
	for _, rec := range records {
		rows = append(rows, template.HTML(renderLedgerRow(rec)))
	}

	data := map[string]any{
		"Page": "ledger",
		"Rows": rows,
	}
	renderPage(w, "ledger", data)
}

func (s *Server) handleLedgerStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ch, cancel := s.auditStore.Subscribe(r.Context())
	defer cancel()
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case record, ok := <-ch:
			if !ok {
				return
			}
			// One SSE data line per event.
			row := strings.ReplaceAll(renderLedgerRow(record), "\n", " ")
			fmt.Fprintf(w, "event: ledger\ndata: %s\n\n", row)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"Page": "policy"}

	switch e := s.engine.(type) {
	case nil:
		data["PolicyYAML"] = "# no policy configured: every tool call is allowed"
	case *policy.YAMLEngine:
		policyYAML, _ := yaml.Marshal(e.Policy())
		data["PolicyYAML"] = string(policyYAML)
	default:
		data["PolicyYAML"] = "# Rego policy in effect"
	}
	renderPage(w, "policy", data)
}

func (s *Server) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.auditStore.Stats(r.Context())
	if err != nil {
		http.Error(w, "failed to get stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

// handleAPIRecords serves ledger records filtered by the kind, tool, model,
// verdict, since, limit and offset query parameters.
func (s *Server) handleAPIRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := parseQueryFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	records, err := s.auditStore.Query(r.Context(), filter)
	if err != nil {
		http.Error(w, "failed to query ledger", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*api.AuditRecord{}
	}
	writeJSON(w, records)
}

func (s *Server) handleAPICheck(w http.ResponseWriter, r *http.Request) {
	var req api.CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if s.engine == nil {
		writeJSON(w, api.CheckResponse{Verdict: api.VerdictAllow, Rule: "_no_policy"})
		return
	}

	input := &policy.EvalInput{
		Tool:      req.Tool,
		Arguments: req.Arguments,
	}

	result, err := s.engine.Evaluate(r.Context(), input)
	if err != nil {
		http.Error(w, "evaluation error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, api.CheckResponse{
		Verdict: result.Verdict,
		Rule:    result.Rule,
		Message: result.Message,
	})
}

func parseQueryFilter(r *http.Request) (api.QueryFilter, error) {
	q := r.URL.Query()
	f := api.QueryFilter{
		Kind:    api.RecordKind(q.Get("kind")),
		Tool:    q.Get("tool"),
		Model:   q.Get("model"),
		Verdict: api.Verdict(q.Get("verdict")),
		Limit:   100,
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("invalid since: %w", err)
		}
		f.Since = t
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return f, fmt.Errorf("invalid %s %q", name, v)
			}
			*dst = n
		}
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func renderLedgerRow(record *api.AuditRecord) string {
	subject := record.Tool
	detail := ""
	badge := strings.ToUpper(string(record.Verdict))
	badgeClass := verdictColor(record.Verdict)

	if record.Kind == api.KindCompletion {
		subject = record.Model
		detail = fmt.Sprintf("in %s / out %s", tokens(record.InputTokens), tokens(record.OutputTokens))
		badge = "COMPLETION"
		badgeClass = "bg-purple-900 text-purple-300"
	} else if record.Arguments != nil {
		detail = truncate(string(record.Arguments), 80)
	}
	if record.IsError {
		badge = "ERROR"
		badgeClass = "bg-orange-900 text-orange-300"
	}

	cost := record.Cost
	if record.Kind == api.KindCompletion && cost == "" {
		cost = "n/a"
	}

	return fmt.Sprintf(
		`<tr class="border-b border-gray-700 hover:bg-gray-800"><td class="px-4 py-2 text-gray-400 text-xs">%s</td><td class="px-4 py-2">%s</td><td class="px-4 py-2 font-mono text-sm">%s</td><td class="px-4 py-2"><span class="px-2 py-1 rounded text-xs font-bold %s">%s</span></td><td class="px-4 py-2 text-gray-400 text-xs">%s</td><td class="px-4 py-2 text-gray-400 text-xs">%s</td></tr>`,
		record.Timestamp.Format(time.RFC3339),
		escapeHTML(subject),
		escapeHTML(detail),
		badgeClass,
		badge,
		escapeHTML(record.Rule),
		escapeHTML(cost),
	)
}

func tokens(n *int64) string {
	if n == nil {
		return "?"
	}
	return strconv.FormatInt(*n, 10)
}

func verdictColor(v api.Verdict) string {
	switch v {
	case api.VerdictAllow:
		return "bg-green-900 text-green-300"
	case api.VerdictDeny:
		return "bg-red-900 text-red-300"
	case api.VerdictLog:
		return "bg-blue-900 text-blue-300"
	default:
		return "bg-gray-700 text-gray-300"
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

func escapeHTML(s string) string {
	return template.HTMLEscapeString(s)
}
