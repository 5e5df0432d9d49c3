package models

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain(t *testing.T, n int) []*Event {
	t.Helper()

	at := time.Unix(1700000000, 0)
	events := make([]*Event, 0, n)
	var prev []byte
	for i := 0; i < n; i++ {
		e, err := NewEvent(uint64(i+1), EventBatchOpened, at.Add(time.Duration(i)*time.Second), BatchOpened{BatchID: uint64(i + 1)}, prev)
		require.NoError(t, err)
		events = append(events, e)
		prev = e.Hash
	}
	return events
}

func TestNewEvent(t *testing.T) {
	at := time.Unix(1700000000, 0).UTC()
	e, err := NewEvent(1, EventBatchOpened, at, BatchOpened{BatchID: 3, CreatedAt: at}, nil)
	require.NoError(t, err)
	assert.True(t, e.Validate())

	var payload BatchOpened
	require.NoError(t, e.Decode(&payload))
	if diff := cmp.Diff(BatchOpened{BatchID: 3, CreatedAt: at}, payload); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}

	_, err = NewEvent(1, EventBatchOpened, at, make(chan int), nil)
	assert.Error(t, err)
}

func TestValidateEvents(t *testing.T) {
	assert.NoError(t, ValidateEvents(nil))
	assert.NoError(t, ValidateEvents(chain(t, 4)))

	tests := map[string]func(events []*Event){
		"tampered data": func(events []*Event) {
			events[1].Data = []byte(`{"batch_id":9}`)
		},
		"broken link": func(events []*Event) {
			events[2].PrevHash = events[0].Hash
			events[2].Hash = events[2].calculateHash()
		},
		"sequence gap": func(events []*Event) {
			events[3].Seq = 9
			events[3].Hash = events[3].calculateHash()
		},
		"time goes backwards": func(events []*Event) {
			events[3].Timestamp = events[0].Timestamp - 1
			events[3].Hash = events[3].calculateHash()
		},
	}
	for name, tamper := range tests {
		t.Run(name, func(t *testing.T) {
			events := chain(t, 4)
			tamper(events)
			assert.Error(t, ValidateEvents(events))
		})
	}
}
