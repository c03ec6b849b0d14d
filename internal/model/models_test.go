// internal/model/models_test.go
package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvocationStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status InvocationStatus
		want   bool
	}{
		{InvocationStatusPending, false},
		{InvocationStatusProcessing, false},
		{InvocationStatusCompleted, true},
		{InvocationStatusFailed, true},
		{InvocationStatusCancelled, true},
		{InvocationStatus("unheard-of"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsTerminal())
		})
	}
}
