package mocks

import (
	nethttp "net/http"

	"github.com/stretchr/testify/mock"
)

// MockDoer provides a testify-based mock of an HTTP transport (anything with
// Do(*http.Request) (*http.Response, error), such as *http.Client).
//
// Example usage:
//
//	doer := &mocks.MockDoer{}
//	doer.On("Do", mock.Anything).Return(fixtures.NewResponse(503, ""), nil).Once()
//	doer.On("Do", mock.Anything).Return(fixtures.NewResponse(200, "ok"), nil).Once()
type MockDoer struct {
	mock.Mock
}

// Do implements the transport interface
func (m *MockDoer) Do(req *nethttp.Request) (*nethttp.Response, error) {
	args := m.Called(req)
	var resp *nethttp.Response
	if r := args.Get(0); r != nil {
		resp = r.(*nethttp.Response)
	}
	return resp, args.Error(1)
}
