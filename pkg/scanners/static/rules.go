package static

import (
	"regexp"

	"github.com/vulnflow/vulnflow/pkg/model"
)

// Rule matches one vulnerability shape in source text.
type Rule struct {
	// Unique rule identifier, e.g. "static.sql.string-concat"
	ID string

	// Category assigned to findings produced by this rule
	Category model.Category

	// Base severity on the 0.0-10.0 scale
	Severity float64

	// Pattern applied line by line
	Pattern *regexp.Regexp

	// Human-readable description of the weakness
	Description string
}

// DefaultRules returns the built-in rule set covering all supported
// vulnerability categories. Patterns are intentionally shape-level:
// they flag the common dangerous idioms, not every possible variant.
func DefaultRules() []Rule {
	return []Rule{
		// SQL injection: query text assembled from user-controlled values
		{
			ID:          "static.sql.string-concat",
			Category:    model.CategorySQLInjection,
			Severity:    9.8,
			Pattern:     regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE)\s+[^"']*["'][^"']*["']\s*\+\s*\w`),
			Description: "SQL statement built by string concatenation with a runtime value",
		},
		{
			ID:          "static.sql.format-string",
			Category:    model.CategorySQLInjection,
			Severity:    9.1,
			Pattern:     regexp.MustCompile(`(?i)(Sprintf|format|f["'])\s*\(?\s*["'][^"']*(SELECT|INSERT|UPDATE|DELETE)[^"']*%[sdv]`),
			Description: "SQL statement built with a format string instead of placeholders",
		},

		// Cross-site scripting: raw values written into markup
		{
			ID:          "static.xss.inner-html",
			Category:    model.CategoryXSS,
			Severity:    6.1,
			Pattern:     regexp.MustCompile(`(innerHTML|outerHTML)\s*=\s*[^"']`),
			Description: "assignment of a dynamic value to innerHTML/outerHTML",
		},
		{
			ID:          "static.xss.document-write",
			Category:    model.CategoryXSS,
			Severity:    6.1,
			Pattern:     regexp.MustCompile(`document\.write\s*\(\s*[^"')]`),
			Description: "document.write called with a dynamic value",
		},
		{
			ID:          "static.xss.unsafe-template",
			Category:    model.CategoryXSS,
			Severity:    6.5,
			Pattern:     regexp.MustCompile(`template\.(HTML|JS|URL)\s*\(\s*\w`),
			Description: "unescaped template type constructed from a runtime value",
		},

		// Path traversal: filesystem access with request-derived paths
		{
			ID:          "static.path.join-user-input",
			Category:    model.CategoryPathTraversal,
			Severity:    7.5,
			Pattern:     regexp.MustCompile(`(filepath\.Join|path\.join|os\.path\.join)\s*\([^)]*(r\.|req\.|request\.|params|query|form)`),
			Description: "filesystem path joined with request-derived input",
		},
		{
			ID:          "static.path.dotdot",
			Category:    model.CategoryPathTraversal,
			Severity:    7.5,
			Pattern:     regexp.MustCompile(`(Open|ReadFile|open|readFile)\s*\([^)]*\.\./`),
			Description: "file opened with a parent-directory path component",
		},

		// Hardcoded credentials: secret material committed in source
		{
			ID:          "static.cred.assignment",
			Category:    model.CategoryHardcodedCredential,
			Severity:    8.6,
			Pattern:     regexp.MustCompile(`(?i)(password|passwd|secret|api[_-]?key|auth[_-]?token|access[_-]?key)\s*[:=]+\s*["'][^"']{4,}["']`),
			Description: "credential material assigned from a string literal",
		},
		{
			ID:          "static.cred.connection-string",
			Category:    model.CategoryHardcodedCredential,
			Severity:    9.0,
			Pattern:     regexp.MustCompile(`(?i)["'](postgres|mysql|mongodb|redis|amqp)://[^"'@]+:[^"'@]+@`),
			Description: "connection string embedding a username and password",
		},

		// Missing authentication: sensitive routes wired without a guard
		{
			ID:          "static.auth.unprotected-route",
			Category:    model.CategoryMissingAuth,
			Severity:    8.2,
			Pattern:     regexp.MustCompile(`(?i)(HandleFunc|Handle|route|app\.(get|post|put|delete))\s*\(\s*["'][^"']*(admin|internal|debug|config)[^"']*["']`),
			Description: "sensitive route registered without an authentication wrapper",
		},
	}
}
