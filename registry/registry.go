// Package registry is a file-backed principal registry: the set of
// administrators and authorized submitters and the pause switch.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"confidential-voting/log"
)

var (
	ErrAlreadyRegistered = errors.New("principal is already a submitter")
	ErrZeroAddress       = errors.New("zero address cannot be registered")
)

// Config points the registry at its backing file.
type Config struct {
	FilePath string
	// AutoSave persists every change immediately.
	AutoSave bool
}

type document struct {
	Administrators []common.Address `json:"administrators"`
	Submitters     []common.Address `json:"submitters"`
	Paused         bool             `json:"paused"`
	LastUpdated    time.Time        `json:"last_updated"`
}

// Registry implements the engine's AccessPolicy.
type Registry struct {
	config Config

	mu             sync.RWMutex
	administrators map[common.Address]bool
	submitters     map[common.Address]bool
	paused         bool
}

// New loads the registry file, creating it from the seed lists when it
// does not exist yet. An existing file wins over the seeds.
func New(config Config, administrators, submitters []common.Address) (*Registry, error) {
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %v", err)
	}

	r := &Registry{
		config:         config,
		administrators: make(map[common.Address]bool),
		submitters:     make(map[common.Address]bool),
	}

	if err := r.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := validate(document{Administrators: administrators, Submitters: submitters}); err != nil {
			return nil, err
		}
		for _, a := range administrators {
			r.administrators[a] = true
		}
		for _, s := range submitters {
			r.submitters[s] = true
		}
		if err := r.Save(); err != nil {
			return nil, err
		}
		log.Info("msg", "created principal registry", "path", config.FilePath)
	}
	return r, nil
}

// Load replaces the in-memory sets with the file contents.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.config.FilePath)
	if err != nil {
		return err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal registry: %v", err)
	}
	if err := validate(doc); err != nil {
		return fmt.Errorf("invalid registry %s: %v", r.config.FilePath, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.administrators = make(map[common.Address]bool)
	for _, a := range doc.Administrators {
		r.administrators[a] = true
	}
	r.submitters = make(map[common.Address]bool)
	for _, s := range doc.Submitters {
		r.submitters[s] = true
	}
	r.paused = doc.Paused
	return nil
}

// Save writes the registry file atomically.
func (r *Registry) Save() error {
	r.mu.RLock()
	doc := document{
		Administrators: keys(r.administrators),
		Submitters:     keys(r.submitters),
		Paused:         r.paused,
		LastUpdated:    time.Now().UTC(),
	}
	r.mu.RUnlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %v", err)
	}

	tempPath := r.config.FilePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write registry: %v", err)
	}
	if err := os.Rename(tempPath, r.config.FilePath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save registry: %v", err)
	}
	return nil
}

func (r *Registry) IsAdministrator(principal common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.administrators[principal]
}

func (r *Registry) IsAuthorizedSubmitter(principal common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.submitters[principal]
}

func (r *Registry) IsPaused() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.paused
}

// RegisterSubmitter authorizes principal to submit ballots.
func (r *Registry) RegisterSubmitter(principal common.Address) error {
	if principal == (common.Address{}) {
		return ErrZeroAddress
	}

	r.mu.Lock()
	if r.submitters[principal] {
		r.mu.Unlock()
		return ErrAlreadyRegistered
	}
	r.submitters[principal] = true
	r.mu.Unlock()

	log.Info("msg", "submitter registered", "principal", principal.Hex())
	return r.autoSave()
}

func (r *Registry) SetPaused(paused bool) error {
	r.mu.Lock()
	r.paused = paused
	r.mu.Unlock()

	log.Warn("msg", "pause switch changed", "paused", paused)
	return r.autoSave()
}

func (r *Registry) autoSave() error {
	if !r.config.AutoSave {
		return nil
	}
	return r.Save()
}

func validate(doc document) error {
	if len(doc.Administrators) == 0 {
		return errors.New("at least one administrator is required")
	}
	for _, a := range doc.Administrators {
		if a == (common.Address{}) {
			return ErrZeroAddress
		}
	}
	for _, s := range doc.Submitters {
		if s == (common.Address{}) {
			return ErrZeroAddress
		}
	}
	return nil
}

func keys(set map[common.Address]bool) []common.Address {
	out := make([]common.Address, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Bytes(), out[j].Bytes()) < 0
	})
	return out
}
