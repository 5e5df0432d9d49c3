package models

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"
)

// EventType names a notification emitted by the tally engine.
type EventType string

const (
	EventBatchOpened         EventType = "BatchOpened"
	EventBatchClosed         EventType = "BatchClosed"
	EventBallotSubmitted     EventType = "BallotSubmitted"
	EventResultsComputed     EventType = "ResultsComputed"
	EventDecryptionRequested EventType = "DecryptionRequested"
	EventDecryptionCompleted EventType = "DecryptionCompleted"
	EventDecryptionRejected  EventType = "DecryptionRejected"
)

// Event is one record of the append-only notification log. Records are
// chained: each Hash covers the previous record's Hash.
type Event struct {
	Seq       uint64          `json:"seq"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	PrevHash  []byte          `json:"prev_hash"`
	Hash      []byte          `json:"hash"`
}

// NewEvent marshals payload and seals the record onto prevHash.
func NewEvent(seq uint64, eventType EventType, at time.Time, payload interface{}, prevHash []byte) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	e := &Event{
		Seq:       seq,
		Type:      eventType,
		Timestamp: at.UnixNano(),
		Data:      data,
		PrevHash:  prevHash,
	}
	e.Hash = e.calculateHash()
	return e, nil
}

func (e *Event) calculateHash() []byte {
	buffer := new(bytes.Buffer)
	binary.Write(buffer, binary.BigEndian, e.Seq)
	binary.Write(buffer, binary.BigEndian, e.Timestamp)
	buffer.WriteString(string(e.Type))
	buffer.Write(e.Data)
	buffer.Write(e.PrevHash)

	hash := sha256.Sum256(buffer.Bytes())
	return hash[:]
}

// Validate reports whether the stored hash matches the record contents.
func (e *Event) Validate() bool {
	return bytes.Equal(e.calculateHash(), e.Hash)
}

// Decode unmarshals the event payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// ValidateEvents checks hashes, links and sequence numbers of the whole log.
func ValidateEvents(events []*Event) error {
	for i, e := range events {
		if !e.Validate() {
			return fmt.Errorf("event %d has invalid hash", e.Seq)
		}
		if i == 0 {
			continue
		}

		prev := events[i-1]
		if !bytes.Equal(e.PrevHash, prev.Hash) {
			return fmt.Errorf("event %d has invalid previous hash link", e.Seq)
		}
		if e.Seq != prev.Seq+1 {
			return fmt.Errorf("event %d breaks sequence after %d", e.Seq, prev.Seq)
		}
		if e.Timestamp < prev.Timestamp {
			return fmt.Errorf("event %d has timestamp before its predecessor", e.Seq)
		}
	}
	return nil
}
