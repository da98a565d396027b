package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name      string
		err       error
		wantStale bool
	}{
		{name: "nil", err: nil},
		{name: "missing node id", err: errors.New("could not find node with given id (-32000)"), wantStale: true},
		{name: "no node", err: errors.New("No node found for given backend id"), wantStale: true},
		{name: "timeout", err: errors.New("context deadline exceeded")},
		{name: "intercepted", err: ErrClickIntercepted},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.err)

			if tc.err == nil {
				assert.NoError(t, got)
				return
			}
			assert.Equal(t, tc.wantStale, errors.Is(got, ErrStaleElement))
			assert.ErrorContains(t, got, tc.err.Error())
		})
	}
}
