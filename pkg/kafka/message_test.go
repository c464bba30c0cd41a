package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrigger(t *testing.T) {
	msg := &IncomingMessage{Value: []byte(`{"job": "contributions", "invocation_id": "inv-1", "params": {"partition": "2022"}}`)}

	require.NoError(t, msg.ParseTrigger())
	require.NotNil(t, msg.Trigger)
	assert.Equal(t, "contributions", msg.JobName())
	assert.Equal(t, "2022", msg.Trigger.Params.Partition)
	assert.False(t, msg.IsContinuation())
}

func TestParseTrigger_Continuation(t *testing.T) {
	msg := &IncomingMessage{Value: []byte(`{"job": "ads", "continuation": true}`)}

	require.NoError(t, msg.ParseTrigger())
	assert.True(t, msg.IsContinuation())
}

func TestParseTrigger_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "not json", value: "{nope"},
		{name: "missing job", value: `{"params": {}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &IncomingMessage{Value: []byte(tt.value)}
			assert.Error(t, msg.ParseTrigger())
		})
	}
}

func TestJobName_HeaderFallback(t *testing.T) {
	msg := &IncomingMessage{Headers: map[string]string{"job": "lobbying"}}
	assert.Equal(t, "lobbying", msg.JobName())
}
