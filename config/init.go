package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// Init writes the default configuration to path. An existing file is only
// replaced when force is set.
func Init(path string, force bool) error {
	if fileExists(path) && !force {
		return fmt.Errorf("config %s already exists", path)
	}
	return writeConfigFile(path, Default())
}

// writeConfigFile writes cfg into path through a temp file and rename.
func writeConfigFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0775); err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0660)
	if err != nil {
		return err
	}
	if err := encode(f, cfg); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// encode configuration with YAML
func encode(w io.Writer, value interface{}) error {
	buf, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// fileExists check if the file with the given path exits.
func fileExists(filename string) bool {
	fi, err := os.Lstat(filename)
	if fi != nil || (err != nil && !os.IsNotExist(err)) {
		return true
	}
	return false
}
