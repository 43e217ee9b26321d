// Package testutil provides shared constants and a scripted control-plane
// server for tests that exercise the agent client end to end.
package testutil

const (
	// TestAgentID is the agent identifier used by client tests.
	TestAgentID = "agent-0001"

	// TestAuthToken is the bearer token the stub control plane accepts.
	TestAuthToken = "test-token"

	// TestUserAgent is the User-Agent configured for client tests.
	TestUserAgent = "agentlink-test/1.0"

	// TestConnectionRefused is the common network error message for connection failures.
	TestConnectionRefused = "connection refused"
)
