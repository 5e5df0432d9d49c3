package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

type Server struct {
	Address string `mapstructure:"address" yaml:"address"`
	// EncryptHelper exposes POST /encryption/encrypt, which receives plaintext. Testing only.
	EncryptHelper bool `mapstructure:"encrypt_helper" yaml:"encrypt_helper"`
}

type Log struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

type Storage struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

type Policy struct {
	Administrators []string `mapstructure:"administrators" yaml:"administrators"`
	Submitters     []string `mapstructure:"submitters" yaml:"submitters"`
}

type Throttle struct {
	SubmissionInterval        time.Duration `mapstructure:"submission_interval" yaml:"submission_interval"`
	DecryptionRequestInterval time.Duration `mapstructure:"decryption_request_interval" yaml:"decryption_request_interval"`
}

type Encryption struct {
	Scheme            string `mapstructure:"scheme" yaml:"scheme"`
	KeyBits           int    `mapstructure:"key_bits" yaml:"key_bits"`
	ApprovalThreshold uint64 `mapstructure:"approval_threshold" yaml:"approval_threshold"`
}

type Oracle struct {
	Workers   int `mapstructure:"workers" yaml:"workers"`
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
	// SignerKeys are hex secp256k1 private keys of the in-process oracle.
	SignerKeys []string `mapstructure:"signer_keys" yaml:"signer_keys"`
	// Signers are the recognized signer addresses; derived from SignerKeys when empty.
	Signers   []string `mapstructure:"signers" yaml:"signers"`
	Threshold int      `mapstructure:"threshold" yaml:"threshold"`
	// ResponseDelay holds every response back before delivery.
	ResponseDelay time.Duration `mapstructure:"response_delay" yaml:"response_delay"`
}

type Config struct {
	// Instance identifies this tally instance inside every state hash.
	Instance   string     `mapstructure:"instance" yaml:"instance"`
	Server     Server     `mapstructure:"server" yaml:"server"`
	Log        Log        `mapstructure:"log" yaml:"log"`
	Storage    Storage    `mapstructure:"storage" yaml:"storage"`
	Policy     Policy     `mapstructure:"policy" yaml:"policy"`
	Throttle   Throttle   `mapstructure:"throttle" yaml:"throttle"`
	Encryption Encryption `mapstructure:"encryption" yaml:"encryption"`
	Oracle     Oracle     `mapstructure:"oracle" yaml:"oracle"`
}

// Default returns a single-node development configuration.
func Default() *Config {
	return &Config{
		Instance: "0x0000000000000000000000000000000000000001",
		Server:   Server{Address: ":8080"},
		Log:      Log{Level: "info"},
		Storage:  Storage{Dir: "data"},
		Policy:   Policy{},
		Throttle: Throttle{
			SubmissionInterval:        0,
			DecryptionRequestInterval: 0,
		},
		Encryption: Encryption{
			Scheme:            "paillier",
			KeyBits:           2048,
			ApprovalThreshold: 1,
		},
		Oracle: Oracle{
			Workers:   2,
			QueueSize: 64,
			Threshold: 1,
		},
	}
}

// Load reads a YAML file on top of Default.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}

	conf := Default()
	if err := v.Unmarshal(conf); err != nil {
		return nil, fmt.Errorf("error in read config, err: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) Validate() error {
	if !common.IsHexAddress(c.Instance) {
		return fmt.Errorf("instance %q is not a hex address", c.Instance)
	}
	for _, addr := range append(append([]string{}, c.Policy.Administrators...), c.Policy.Submitters...) {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("policy address %q is not a hex address", addr)
		}
	}
	for _, addr := range c.Oracle.Signers {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("oracle signer %q is not a hex address", addr)
		}
	}
	if strings.ToLower(c.Encryption.Scheme) != "paillier" {
		return fmt.Errorf("unsupported encryption scheme %q", c.Encryption.Scheme)
	}
	if c.Encryption.KeyBits < 512 {
		return errors.New("encryption key_bits must be at least 512")
	}
	if c.Oracle.Workers < 1 || c.Oracle.QueueSize < 1 {
		return errors.New("oracle workers and queue_size must be positive")
	}
	if c.Oracle.Threshold < 1 {
		return errors.New("oracle threshold must be at least 1")
	}
	if c.Throttle.SubmissionInterval < 0 || c.Throttle.DecryptionRequestInterval < 0 {
		return errors.New("throttle intervals must not be negative")
	}
	if c.Oracle.ResponseDelay < 0 {
		return errors.New("oracle response_delay must not be negative")
	}
	return nil
}

// InstanceAddress returns the parsed instance identity.
func (c *Config) InstanceAddress() common.Address {
	return common.HexToAddress(c.Instance)
}
