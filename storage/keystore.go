package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"confidential-voting/encryption"
	"confidential-voting/log"
)

const (
	keyFilePattern = "paillier_key_*.json"
	keyTimeLayout  = "20060102150405"
	keepKeyFiles   = 5
)

// KeyStore keeps timestamped snapshots of the Paillier key material and
// retains the most recent few.
type KeyStore struct {
	dataDir string
	now     func() time.Time
}

type keyFile struct {
	path      string
	timestamp int64
}

type keyFiles []keyFile

func (f keyFiles) Len() int           { return len(f) }
func (f keyFiles) Less(i, j int) bool { return f[i].timestamp < f[j].timestamp }
func (f keyFiles) Swap(i, j int)      { f[i], f[j] = f[j], f[i] }

func NewKeyStore(dataDir string) (*KeyStore, error) {
	absPath, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %v", err)
	}
	if err := os.MkdirAll(absPath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	return &KeyStore{
		dataDir: absPath,
		now:     time.Now,
	}, nil
}

// LoadLatest returns the newest stored key, or nil when none exists.
func (s *KeyStore) LoadLatest() (*encryption.PaillierKey, error) {
	files, err := s.list()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	latest := files[len(files)-1].path
	data, err := os.ReadFile(latest)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", latest, err)
	}

	var key encryption.PaillierKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("failed to decode key from %s: %v", latest, err)
	}
	if key.P == nil || key.Q == nil {
		return nil, fmt.Errorf("key file %s has no key material", latest)
	}

	log.Info("msg", "loaded decryption key", "path", latest)
	return &key, nil
}

// Save writes key as the newest snapshot and prunes old ones.
func (s *KeyStore) Save(key *encryption.PaillierKey) error {
	data, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("failed to encode key: %v", err)
	}

	filename := filepath.Join(s.dataDir, fmt.Sprintf("paillier_key_%s.json", s.now().UTC().Format(keyTimeLayout)))
	tempPath := filename + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write key file: %v", err)
	}
	if err := os.Rename(tempPath, filename); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save key file: %v", err)
	}

	if err := s.cleanupOldFiles(keepKeyFiles); err != nil {
		log.Warn("msg", "failed to clean up old key files", "err", err)
	}

	log.Info("msg", "saved decryption key", "path", filename)
	return nil
}

// list returns the key files sorted oldest first.
func (s *KeyStore) list() (keyFiles, error) {
	paths, err := filepath.Glob(filepath.Join(s.dataDir, keyFilePattern))
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %v", err)
	}

	var files keyFiles
	for _, path := range paths {
		base := filepath.Base(path)
		stamp := strings.TrimSuffix(strings.TrimPrefix(base, "paillier_key_"), ".json")
		ts, err := time.Parse(keyTimeLayout, stamp)
		if err != nil {
			log.Warn("msg", "invalid timestamp in key file name", "file", base, "err", err)
			continue
		}
		files = append(files, keyFile{path: path, timestamp: ts.Unix()})
	}

	sort.Sort(files)
	return files, nil
}

func (s *KeyStore) cleanupOldFiles(keep int) error {
	files, err := s.list()
	if err != nil {
		return err
	}

	for i := 0; i < len(files)-keep; i++ {
		if err := os.Remove(files[i].path); err != nil {
			log.Warn("msg", "failed to remove old key file", "path", files[i].path, "err", err)
		}
	}
	return nil
}
