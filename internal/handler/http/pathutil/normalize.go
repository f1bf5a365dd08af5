package pathutil

import (
	"regexp"
	"strings"
)

// PathPattern represents a regex pattern and its corresponding normalized template.
type PathPattern struct {
	Pattern  *regexp.Regexp
	Template string
}

// pathPatterns defines the list of patterns for dynamic routes.
// Patterns are evaluated in order from most specific to least specific.
// Static sub-routes such as /v1/tasks/can-submit must appear before the
// generic ID patterns that would otherwise swallow them.
// Pre-compiled at initialization for optimal performance (<1μs per operation).
var pathPatterns = []*PathPattern{
	// Static sub-routes that look like IDs
	{Pattern: regexp.MustCompile(`^/v1/tasks/can-submit$`), Template: "/v1/tasks/can-submit"},

	// Task routes with IDs
	{Pattern: regexp.MustCompile(`^/v1/tasks/[^/]+$`), Template: "/v1/tasks/:id"},

	// Simulation routes with IDs
	{Pattern: regexp.MustCompile(`^/v1/simulations/[^/]+/stop$`), Template: "/v1/simulations/:id/stop"},
	{Pattern: regexp.MustCompile(`^/v1/simulations/[^/]+$`), Template: "/v1/simulations/:id"},

	// Remediation routes with execution IDs
	{Pattern: regexp.MustCompile(`^/v1/remediations/[^/]+/approve$`), Template: "/v1/remediations/:id/approve"},
	{Pattern: regexp.MustCompile(`^/v1/remediations/[^/]+/reject$`), Template: "/v1/remediations/:id/reject"},

	// Rule routes with IDs
	{Pattern: regexp.MustCompile(`^/v1/rules/[^/]+$`), Template: "/v1/rules/:id"},

	// Fallback chain routes with numeric IDs
	{Pattern: regexp.MustCompile(`^/v1/chains/[^/]+$`), Template: "/v1/chains/:id"},
}

// NormalizePath normalizes dynamic URL paths to prevent metrics label cardinality explosion.
// It converts paths with IDs (e.g., /v1/tasks/3f2a...) to template format (e.g., /v1/tasks/:id).
// Static paths remain unchanged.
//
// Performance: <1μs per operation (pre-compiled regex patterns)
//
// Examples:
//
//	NormalizePath("/v1/tasks/3f2a9c1e")          // "/v1/tasks/:id"
//	NormalizePath("/v1/tasks/can-submit")        // "/v1/tasks/can-submit" (unchanged)
//	NormalizePath("/v1/simulations/sim-42/stop") // "/v1/simulations/:id/stop"
//	NormalizePath("/v1/routing/smart-order")     // "/v1/routing/smart-order" (unchanged)
//	NormalizePath("/health")                     // "/health" (unchanged)
//	NormalizePath("/metrics")                    // "/metrics" (unchanged)
//	NormalizePath("/unknown/path/123")           // "/unknown/path/123" (no match, return original)
//
// Query parameters and trailing slashes are handled:
//
//	NormalizePath("/v1/tasks/3f2a9c1e?verbose=1") // "/v1/tasks/:id"
//	NormalizePath("/v1/tasks/3f2a9c1e/")          // "/v1/tasks/:id"
func NormalizePath(path string) string {
	// Strip query parameters if present
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}

	// Strip trailing slash if present (except for root path)
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}

	// Try to match against known patterns
	for _, p := range pathPatterns {
		if p.Pattern.MatchString(path) {
			return p.Template
		}
	}

	// No match found, return original path
	// This is safe - static paths like /health, /metrics and
	// collection endpoints like /v1/providers/status pass through unchanged
	return path
}

// GetExpectedCardinality returns the expected number of unique path labels
// after normalization. This is useful for capacity planning and monitoring.
//
// Expected cardinality calculation:
//   - Static endpoints: ~12-15 (health, metrics, routing, healing, etc.)
//   - Template endpoints: ~7 (tasks/:id, simulations/:id, etc.)
//   - Total: ~20-25 unique path labels
func GetExpectedCardinality() int {
	// Count template patterns
	templateCount := len(pathPatterns)

	// Estimate static endpoints
	staticCount := 13 // /health, /metrics, /v1/outcomes, /v1/routing/*, etc.

	// Total expected cardinality
	return templateCount + staticCount
}
