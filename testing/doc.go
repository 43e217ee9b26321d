// Package testing provides test doubles for code built on agentlink.
//
// # Mocks
//
// The mocks subpackage provides testify-based mock implementations of the
// HTTP transport consumed by the retrying executor.
//
// # Fixtures
//
// The fixtures subpackage builds canned *http.Response values whose bodies
// record whether they were closed, so tests can assert that retried
// responses are released.
//
// # Usage
//
//	import (
//		"github.com/gaborage/agentlink/testing/mocks"
//		"github.com/gaborage/agentlink/testing/fixtures"
//	)
package testing
