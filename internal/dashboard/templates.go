package dashboard

import (
	"bytes"
	"html/template"
	"net/http"
)

var pageTmpls = map[string]*template.Template{
	"overview": template.Must(template.New("overview").Parse(navHTML + overviewHTML)),
	"ledger":   template.Must(template.New("ledger").Parse(navHTML + ledgerHTML)),
	"policy":   template.Must(template.New("policy").Parse(navHTML + policyHTML)),
}

func renderPage(w http.ResponseWriter, name string, data map[string]any) {
	tmpl, ok := pageTmpls[name]
	if !ok {
		http.Error(w, "unknown page: "+name, http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

const navHTML = `{{define "nav"}}
<nav class="bg-gray-900 border-b border-gray-700 px-6 py-4">
    <div class="flex items-center justify-between max-w-7xl mx-auto">
        <div class="flex items-center space-x-2">
            <span class="text-xl font-bold text-white">toolbridge</span>
            <span class="text-xs bg-gray-700 text-gray-300 px-2 py-1 rounded">Ledger</span>
        </div>
        <div class="flex space-x-4">
            <a href="/" class="px-3 py-2 rounded hover:bg-gray-800 {{if eq .Page "overview"}}bg-gray-800 text-white{{else}}text-gray-400{{end}}">Overview</a>
            <a href="/ledger" class="px-3 py-2 rounded hover:bg-gray-800 {{if eq .Page "ledger"}}bg-gray-800 text-white{{else}}text-gray-400{{end}}">Ledger</a>
            <a href="/policy" class="px-3 py-2 rounded hover:bg-gray-800 {{if eq .Page "policy"}}bg-gray-800 text-white{{else}}text-gray-400{{end}}">Policy</a>
        </div>
    </div>
</nav>
{{end}}`

const headHTML = `<!DOCTYPE html>
<html lang="en" class="dark">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>toolbridge</title>
    <script src="https://cdn.tailwindcss.com"></script>
    <script src="https://unpkg.com/htmx.org@2.0.4"></script>
    <script src="https://unpkg.com/htmx-ext-sse@2.2.2/sse.js"></script>
    <style>body { background-color: #0f172a; color: #e2e8f0; }</style>
</head>
<body class="min-h-screen">
{{template "nav" .}}
<main class="max-w-7xl mx-auto px-6 py-8">`

const footHTML = `</main>
</body>
</html>`

const overviewHTML = headHTML + `
<h1 class="text-2xl font-bold mb-6">Overview</h1>
<div class="grid grid-cols-1 md:grid-cols-4 gap-6 mb-8">
    <div class="bg-gray-900 border border-gray-700 rounded-lg p-6">
        <div class="text-gray-400 text-sm mb-1">Tool Calls</div>
        <div class="text-3xl font-bold text-white">{{.Stats.ToolCalls}}</div>
        <div class="text-xs text-gray-500 mt-1">{{.Stats.ToolErrors}} errors</div>
    </div>
    <div class="bg-gray-900 border border-red-900 rounded-lg p-6">
        <div class="text-red-400 text-sm mb-1">Denied</div>
        <div class="text-3xl font-bold text-red-300">{{.Stats.DenyCount}}</div>
    </div>
    <div class="bg-gray-900 border border-purple-900 rounded-lg p-6">
        <div class="text-purple-400 text-sm mb-1">Completions</div>
        <div class="text-3xl font-bold text-purple-300">{{.Stats.Completions}}</div>
        <div class="text-xs text-gray-500 mt-1">{{.Stats.InputTokens}} in / {{.Stats.OutputTokens}} out</div>
    </div>
    <div class="bg-gray-900 border border-green-900 rounded-lg p-6">
        <div class="text-green-400 text-sm mb-1">Total Cost (USD)</div>
        <div class="text-3xl font-bold text-green-300">{{.Stats.TotalCost}}</div>
        {{if .Stats.UnpricedCompletions}}<div class="text-xs text-gray-500 mt-1">{{.Stats.UnpricedCompletions}} unpriced</div>{{end}}
    </div>
</div>
<div class="grid grid-cols-1 md:grid-cols-2 gap-6">
    <div class="bg-gray-900 border border-gray-700 rounded-lg p-6">
        <h2 class="text-lg font-bold mb-4">By Tool</h2>
        {{range $tool, $count := .Stats.ByTool}}
        <div class="flex justify-between py-1 border-b border-gray-800">
            <span class="text-gray-300 font-mono text-sm">{{$tool}}</span>
            <span class="text-gray-400">{{$count}}</span>
        </div>
        {{else}}<p class="text-gray-500">No data yet</p>{{end}}
    </div>
    <div class="bg-gray-900 border border-gray-700 rounded-lg p-6">
        <h2 class="text-lg font-bold mb-4">By Model</h2>
        {{range $model, $count := .Stats.ByModel}}
        <div class="flex justify-between py-1 border-b border-gray-800">
            <span class="text-gray-300 font-mono text-sm">{{$model}}</span>
            <span class="text-gray-400">{{$count}}</span>
        </div>
        {{else}}<p class="text-gray-500">No data yet</p>{{end}}
    </div>
</div>
` + footHTML

const ledgerHTML = headHTML + `
<div class="flex justify-between items-center mb-6">
    <h1 class="text-2xl font-bold">Ledger</h1>
    <span class="text-sm text-gray-400">Live updates via SSE</span>
</div>
<div class="bg-gray-900 border border-gray-700 rounded-lg overflow-hidden">
    <table class="w-full text-sm text-left">
        <thead class="bg-gray-800 text-gray-400 uppercase text-xs">
            <tr>
                <th class="px-4 py-3">Time</th>
                <th class="px-4 py-3">Tool / Model</th>
                <th class="px-4 py-3">Detail</th>
                <th class="px-4 py-3">Outcome</th>
                <th class="px-4 py-3">Rule</th>
                <th class="px-4 py-3">Cost</th>
            </tr>
        </thead>
        <tbody id="ledger-table"
               hx-ext="sse"
               sse-connect="/ledger/stream"
               sse-swap="ledger"
               hx-swap="afterbegin">
            {{range .Rows}}{{.}}
            {{end}}
        </tbody>
    </table>
</div>
` + footHTML

const policyHTML = headHTML + `
<h1 class="text-2xl font-bold mb-6">Active Policy</h1>
<div class="bg-gray-900 border border-gray-700 rounded-lg p-6">
    <pre class="font-mono text-sm text-gray-300 whitespace-pre-wrap">{{.PolicyYAML}}</pre>
</div>
` + footHTML
