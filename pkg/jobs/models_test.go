package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTerminal(t *testing.T) {
	cases := []struct {
		state JobState
		want  bool
	}{
		{JobStateQueued, false},
		{JobStateRunning, false},
		{JobStateSucceeded, true},
		{JobStateFailed, true},
		{JobStateCanceled, true},
	}
	for _, tc := range cases {
		j := MaintenanceJob{State: tc.state}
		assert.Equal(t, tc.want, j.IsTerminal(), "state %s", tc.state)
	}
}
