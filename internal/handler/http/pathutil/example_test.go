package pathutil_test

import (
	"fmt"

	"provider-mesh/internal/handler/http/pathutil"
)

// ExampleNormalizePath demonstrates how path normalization works
// to prevent metrics label cardinality explosion.
func ExampleNormalizePath() {
	// Before normalization: Each task ID creates a unique path label
	// This would cause cardinality explosion in Prometheus metrics

	// After normalization: All task IDs map to the same template
	fmt.Println(pathutil.NormalizePath("/v1/tasks/task-1"))
	fmt.Println(pathutil.NormalizePath("/v1/tasks/550e8400-e29b-41d4-a716-446655440000"))
	fmt.Println(pathutil.NormalizePath("/v1/tasks/task-99"))

	// Output:
	// /v1/tasks/:id
	// /v1/tasks/:id
	// /v1/tasks/:id
}

// ExampleNormalizePath_simulations demonstrates normalization for simulation endpoints.
func ExampleNormalizePath_simulations() {
	fmt.Println(pathutil.NormalizePath("/v1/simulations/sim-1"))
	fmt.Println(pathutil.NormalizePath("/v1/simulations/sim-2"))
	fmt.Println(pathutil.NormalizePath("/v1/simulations/sim-3/stop"))

	// Output:
	// /v1/simulations/:id
	// /v1/simulations/:id
	// /v1/simulations/:id/stop
}

// ExampleNormalizePath_static demonstrates that static endpoints remain unchanged.
func ExampleNormalizePath_static() {
	fmt.Println(pathutil.NormalizePath("/health"))
	fmt.Println(pathutil.NormalizePath("/metrics"))
	fmt.Println(pathutil.NormalizePath("/v1/providers/status"))

	// Output:
	// /health
	// /metrics
	// /v1/providers/status
}

// ExampleNormalizePath_staticSubRoutes demonstrates that static sub-routes
// are not mistaken for IDs.
func ExampleNormalizePath_staticSubRoutes() {
	fmt.Println(pathutil.NormalizePath("/v1/tasks/can-submit"))
	fmt.Println(pathutil.NormalizePath("/v1/routing/smart-order"))

	// Output:
	// /v1/tasks/can-submit
	// /v1/routing/smart-order
}

// ExampleNormalizePath_queryParameters demonstrates that query parameters are stripped.
func ExampleNormalizePath_queryParameters() {
	fmt.Println(pathutil.NormalizePath("/v1/tasks/task-1?verbose=1"))
	fmt.Println(pathutil.NormalizePath("/v1/routing/smart-order?service_type=video"))
	fmt.Println(pathutil.NormalizePath("/health?format=json"))

	// Output:
	// /v1/tasks/:id
	// /v1/routing/smart-order
	// /health
}

// ExampleNormalizePath_trailingSlash demonstrates that trailing slashes are handled.
func ExampleNormalizePath_trailingSlash() {
	fmt.Println(pathutil.NormalizePath("/v1/tasks/task-1/"))
	fmt.Println(pathutil.NormalizePath("/v1/simulations/sim-2/"))

	// Output:
	// /v1/tasks/:id
	// /v1/simulations/:id
}

// ExampleNormalizePath_nested demonstrates normalization of nested routes.
func ExampleNormalizePath_nested() {
	fmt.Println(pathutil.NormalizePath("/v1/remediations/exec-1/approve"))
	fmt.Println(pathutil.NormalizePath("/v1/remediations/exec-2/reject"))

	// Output:
	// /v1/remediations/:id/approve
	// /v1/remediations/:id/reject
}

// ExampleGetExpectedCardinality demonstrates how to check expected metric cardinality.
func ExampleGetExpectedCardinality() {
	cardinality := pathutil.GetExpectedCardinality()
	fmt.Printf("Expected unique path labels: ~%d\n", cardinality)

	// Output is approximate, so we just demonstrate the usage
	// In real output: Expected unique path labels: ~20
}
