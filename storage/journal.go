// Package storage persists the engine's event log and key material as JSON
// files under one data directory.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"confidential-voting/log"
	"confidential-voting/models"
)

const journalFile = "events.json"

// Journal is an append-only, hash-chained event log. It implements the
// engine's EventSink.
type Journal struct {
	path string

	mu          sync.RWMutex
	events      []*models.Event
	subscribers map[int]chan *models.Event
	nextSub     int
}

// NewJournal opens the journal in dir, validating any existing chain.
func NewJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %v", err)
	}

	j := &Journal{
		path:        filepath.Join(dir, journalFile),
		events:      make([]*models.Event, 0),
		subscribers: make(map[int]chan *models.Event),
	}

	events, err := j.loadFromFile()
	if err != nil {
		return nil, fmt.Errorf("failed to load journal: %v", err)
	}
	if err := models.ValidateEvents(events); err != nil {
		return nil, fmt.Errorf("journal %s is corrupt: %v", j.path, err)
	}
	j.events = events

	log.Info("msg", "journal opened", "path", j.path, "events", len(events))
	return j, nil
}

// Publish seals and persists a new event. Nothing is appended when the
// write fails.
func (j *Journal) Publish(eventType models.EventType, payload interface{}, at time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var (
		seq      uint64 = 1
		prevHash []byte
	)
	if n := len(j.events); n > 0 {
		last := j.events[n-1]
		seq = last.Seq + 1
		prevHash = last.Hash
		if at.UnixNano() < last.Timestamp {
			at = time.Unix(0, last.Timestamp)
		}
	}

	event, err := models.NewEvent(seq, eventType, at, payload, prevHash)
	if err != nil {
		return err
	}

	events := append(j.events, event)
	if err := j.saveToFile(events); err != nil {
		return err
	}
	j.events = events

	for id, ch := range j.subscribers {
		select {
		case ch <- event:
		default:
			log.Warn("msg", "subscriber too slow, event dropped", "subscriber", id, "seq", seq)
		}
	}
	return nil
}

// Events returns the events with a sequence number greater than since.
func (j *Journal) Events(since uint64) []*models.Event {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]*models.Event, 0)
	for _, e := range j.events {
		if e.Seq > since {
			out = append(out, e)
		}
	}
	return out
}

// Subscribe returns a channel receiving every event published afterwards,
// and a function that cancels the subscription and closes the channel.
func (j *Journal) Subscribe(buffer int) (<-chan *models.Event, func()) {
	j.mu.Lock()
	defer j.mu.Unlock()

	id := j.nextSub
	j.nextSub++
	ch := make(chan *models.Event, buffer)
	j.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			j.mu.Lock()
			defer j.mu.Unlock()
			if _, ok := j.subscribers[id]; ok {
				delete(j.subscribers, id)
				close(ch)
			}
		})
	}
}

// Close ends all subscriptions.
func (j *Journal) Close() {
	j.mu.Lock()
	defer j.mu.Unlock()

	for id, ch := range j.subscribers {
		delete(j.subscribers, id)
		close(ch)
	}
}

func (j *Journal) loadFromFile() ([]*models.Event, error) {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make([]*models.Event, 0), nil
		}
		return nil, err
	}

	var events []*models.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal events: %v", err)
	}
	return events, nil
}

func (j *Journal) saveToFile(events []*models.Event) error {
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal events: %v", err)
	}

	// Write to temporary file first
	tempPath := j.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write journal: %v", err)
	}

	if err := os.Rename(tempPath, j.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save journal: %v", err)
	}
	return nil
}
