package serve

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli"

	"confidential-voting/api"
	"confidential-voting/config"
	"confidential-voting/encryption"
	"confidential-voting/log"
	"confidential-voting/oracle"
	"confidential-voting/registry"
	"confidential-voting/service"
	"confidential-voting/storage"
)

func Cmd() cli.Command {
	return cli.Command{
		Name:      "serve",
		Usage:     "Run the engine, the in-process oracle and the HTTP API",
		UsageText: "confidential-voting [--config FILE] [--debug] serve",
		Action: func(c *cli.Context) error {
			conf, err := config.Load(c.GlobalString("config"))
			if err != nil {
				return err
			}
			if c.GlobalBool("debug") {
				conf.Log.Level = "debug"
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, conf)
		},
	}
}

func run(ctx context.Context, conf *config.Config) error {
	if err := log.SetLevel(conf.Log.Level); err != nil {
		return err
	}
	if conf.Log.File != "" {
		if err := log.EnableFileLogger(conf.Log.File); err != nil {
			return err
		}
	}

	scheme, err := loadScheme(conf)
	if err != nil {
		return err
	}

	signer, verifier, err := loadOracleIdentity(conf)
	if err != nil {
		return err
	}
	gateway := oracle.NewGateway(scheme, signer, conf.Oracle.Workers, conf.Oracle.QueueSize,
		oracle.WithResponseDelay(conf.Oracle.ResponseDelay))

	journal, err := storage.NewJournal(conf.Storage.Dir)
	if err != nil {
		return err
	}
	defer journal.Close()

	principals, err := registry.New(registry.Config{
		FilePath: filepath.Join(conf.Storage.Dir, "principals.json"),
		AutoSave: true,
	}, addresses(conf.Policy.Administrators), addresses(conf.Policy.Submitters))
	if err != nil {
		return err
	}

	engine, err := service.NewEngine(service.Options{
		Instance:          conf.InstanceAddress(),
		Evaluator:         scheme.Evaluator(),
		ApprovalThreshold: conf.Encryption.ApprovalThreshold,
		Policy:            principals,
		Limits: service.Limits{
			SubmissionInterval:        conf.Throttle.SubmissionInterval,
			DecryptionRequestInterval: conf.Throttle.DecryptionRequestInterval,
		},
		Oracle:   gateway,
		Verifier: verifier,
		Events:   journal,
	})
	if err != nil {
		return err
	}

	gateway.SetReceiver(engine)
	gateway.Start()
	defer gateway.Stop()

	log.Info("msg", "engine started", "instance", conf.InstanceAddress().Hex(), "scheme", scheme.Name())
	var opts []api.Option
	if conf.Server.EncryptHelper {
		log.Warn("msg", "plaintext encrypt helper enabled, use for testing only")
		opts = append(opts, api.WithEncryptHelper())
	}
	return api.NewServer(conf.Server.Address, engine, journal, scheme, principals, opts...).Start(ctx)
}

// loadScheme reuses the newest stored Paillier key or generates one.
func loadScheme(conf *config.Config) (*encryption.PaillierScheme, error) {
	keys, err := storage.NewKeyStore(conf.Storage.Dir)
	if err != nil {
		return nil, err
	}

	key, err := keys.LoadLatest()
	if err != nil {
		return nil, err
	}
	if key != nil {
		scheme, err := encryption.NewPaillierScheme(key)
		if err != nil {
			return nil, fmt.Errorf("stored decryption key: %w", err)
		}
		return scheme, nil
	}

	log.Info("msg", "generating decryption key", "bits", conf.Encryption.KeyBits)
	scheme, err := encryption.GeneratePaillierScheme(conf.Encryption.KeyBits)
	if err != nil {
		return nil, err
	}
	if err := keys.Save(scheme.Key()); err != nil {
		return nil, err
	}
	return scheme, nil
}

// loadOracleIdentity builds the response signer and the verifier that
// recognizes it. Without configured keys an ephemeral key is used, so
// responses only verify for the lifetime of the process.
func loadOracleIdentity(conf *config.Config) (*oracle.Signer, *oracle.Verifier, error) {
	keys, err := oracle.ParseKeys(conf.Oracle.SignerKeys)
	if err != nil {
		return nil, nil, err
	}
	if len(keys) == 0 {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, nil, err
		}
		keys = []*ecdsa.PrivateKey{key}
		log.Warn("msg", "no oracle signer keys configured, using an ephemeral key")
	}
	signer := oracle.NewSigner(keys)

	recognized := addresses(conf.Oracle.Signers)
	if len(recognized) == 0 {
		recognized = signer.Addresses()
	}
	verifier, err := oracle.NewVerifier(recognized, conf.Oracle.Threshold)
	if err != nil {
		return nil, nil, fmt.Errorf("oracle verifier: %w", err)
	}
	return signer, verifier, nil
}

func addresses(hexes []string) []common.Address {
	out := make([]common.Address, 0, len(hexes))
	for _, h := range hexes {
		out = append(out, common.HexToAddress(h))
	}
	return out
}
