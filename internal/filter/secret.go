package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tkingovr/toolbridge/api"
	"github.com/tkingovr/toolbridge/internal/jsonrpc"
)

// SecretPattern is a named regex matched against every string value in a
// tool call's arguments.
type SecretPattern struct {
	Name  string
	Regex *regexp.Regexp
}

// DefaultSecretPatterns returns the built-in value patterns.
func DefaultSecretPatterns() []SecretPattern {
	return []SecretPattern{
		{Name: "aws_access_key", Regex: regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`)},
		{Name: "github_token", Regex: regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,255}`)},
		{Name: "github_pat_fine", Regex: regexp.MustCompile(`github_pat_[A-Za-z0-9_]{22,255}`)},
		{Name: "private_key", Regex: regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`)},
		{Name: "slack_token", Regex: regexp.MustCompile(`xox[baprs]-[0-9]{10,13}-[0-9]{10,13}[a-zA-Z0-9-]*`)},
		{Name: "stripe_key", Regex: regexp.MustCompile(`(?:sk|pk|rk)_(?:live|test)_[A-Za-z0-9]{20,100}`)},
		{Name: "google_api_key", Regex: regexp.MustCompile(`AIza[A-Za-z0-9\-_]{35}`)},
		{Name: "anthropic_key", Regex: regexp.MustCompile(`sk-ant-[A-Za-z0-9\-_]{20,200}`)},
		{Name: "openai_key", Regex: regexp.MustCompile(`sk-(?:proj-)?[A-Za-z0-9]{32,200}`)},
		{Name: "jwt_token", Regex: regexp.MustCompile(`eyJ[A-Za-z0-9-_]+\.eyJ[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+`)},
		{Name: "ssh_private_key_path", Regex: regexp.MustCompile(`(?i)(?:\.ssh/id_(?:rsa|ed25519|ecdsa|dsa)\b|\.pem$)`)},
		// Assignments embedded in free text, e.g. a shell command.
		{Name: "inline_credential", Regex: regexp.MustCompile(`(?i)(?:aws_secret_access_key|\bpassword|\bpasswd|\bsecret|\bapi[_-]?key|\baccess[_-]?token|\bauth[_-]?token)\s*[=:]\s*['"]?[^\s'"]{8,100}`)},
	}
}

// DefaultSensitiveKeys returns argument names whose string values are
// treated as secrets regardless of content. Names are compared after
// lowercasing and removing '_' and '-'.
func DefaultSensitiveKeys() []string {
	return []string{
		"password", "passwd", "pwd", "secret", "clientsecret",
		"apikey", "apisecret", "token", "accesstoken", "authtoken",
		"refreshtoken", "privatekey", "awssecretaccesskey",
	}
}

// minSensitiveValue is the shortest value under a sensitive key that is
// reported. Shorter values are placeholders or empty.
const minSensitiveValue = 8

// SecretScannerFilter denies tool calls whose decoded argument values look
// like credentials: a value pattern match, a string under a sensitive
// argument name, or a high-entropy word.
type SecretScannerFilter struct {
	patterns         []SecretPattern
	sensitiveKeys    map[string]bool
	entropyThreshold float64
	minTokenLength   int
}

// SecretScannerOption configures the SecretScannerFilter.
type SecretScannerOption func(*SecretScannerFilter)

// WithPatterns replaces the default value patterns.
func WithPatterns(patterns []SecretPattern) SecretScannerOption {
	return func(f *SecretScannerFilter) {
		f.patterns = patterns
	}
}

// WithSensitiveKeys replaces the default sensitive argument names.
func WithSensitiveKeys(keys []string) SecretScannerOption {
	return func(f *SecretScannerFilter) {
		f.sensitiveKeys = make(map[string]bool, len(keys))
		for _, k := range keys {
			f.sensitiveKeys[normalizeKey(k)] = true
		}
	}
}

// WithEntropyThreshold sets the Shannon entropy, in bits per character, at
// which a word is reported. Default is 4.5 (a random 32-char hex string
// has ~4.0 entropy).
func WithEntropyThreshold(threshold float64) SecretScannerOption {
	return func(f *SecretScannerFilter) {
		f.entropyThreshold = threshold
	}
}

// NewSecretScannerFilter creates a new secret scanner filter.
func NewSecretScannerFilter(opts ...SecretScannerOption) *SecretScannerFilter {
	f := &SecretScannerFilter{
		patterns:         DefaultSecretPatterns(),
		entropyThreshold: 4.5,
		minTokenLength:   20,
	}
	WithSensitiveKeys(DefaultSensitiveKeys())(f)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *SecretScannerFilter) Name() string { return "secret_scanner" }

func (f *SecretScannerFilter) Process(_ context.Context, fc *FilterContext) error {
	if fc.Halted || len(fc.Arguments) == 0 {
		return nil
	}

	var args any
	if err := json.Unmarshal(fc.Arguments, &args); err != nil {
		return nil
	}

	walkStrings("", "", args, func(path, key, value string) bool {
		if rule, msg, found := f.inspect(key, value); found {
			fc.Halt(jsonrpc.CodePolicyDenied, api.VerdictDeny, "secret_scanner:"+rule,
				fmt.Sprintf("potential secret in argument %s: %s", displayPath(path), msg))
			return true
		}
		return false
	})
	return nil
}

// inspect checks one string value found under key.
func (f *SecretScannerFilter) inspect(key, value string) (rule, msg string, found bool) {
	if key != "" && f.sensitiveKeys[normalizeKey(key)] && len(value) >= minSensitiveValue {
		return "sensitive_key", fmt.Sprintf("value of %q", key), true
	}
	for _, p := range f.patterns {
		if p.Regex.MatchString(value) {
			return p.Name, p.Name + " pattern matched", true
		}
	}
	for _, word := range strings.Fields(value) {
		if len(word) < f.minTokenLength {
			continue
		}
		if bits := shannonEntropy(word); bits >= f.entropyThreshold {
			return "high_entropy", fmt.Sprintf("high-entropy string (%.1f bits) starting with %q", bits, truncateStr(word, 8)), true
		}
	}
	return "", "", false
}

// walkStrings calls visit for every string reachable from v, with its path
// and the object key it sits under ("" inside arrays and at the root).
// Object keys are visited in sorted order. The walk stops when visit
// returns true.
func walkStrings(path, key string, v any, visit func(path, key, value string) bool) bool {
	switch val := v.(type) {
	case string:
		return visit(path, key, val)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := k
			if path != "" {
				child = path + "." + k
			}
			if walkStrings(child, k, val[k], visit) {
				return true
			}
		}
	case []any:
		for i, item := range val {
			if walkStrings(path+"["+strconv.Itoa(i)+"]", "", item, visit) {
				return true
			}
		}
	}
	return false
}

func displayPath(path string) string {
	if path == "" {
		return "(root)"
	}
	return strconv.Quote(path)
}

func normalizeKey(k string) string {
	k = strings.ToLower(k)
	return strings.NewReplacer("_", "", "-", "").Replace(k)
}

// shannonEntropy calculates Shannon entropy of a string in bits per character.
func shannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}

	freq := make(map[rune]float64)
	for _, c := range s {
		freq[c]++
	}

	length := float64(len([]rune(s)))
	entropy := 0.0
	for _, count := range freq {
		p := count / length
		if p > 0 {
			entropy -= p * math.Log2(p)
		}
	}
	return entropy
}

func truncateStr(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
