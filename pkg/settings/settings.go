// Package settings collects the operator inputs of a sweep from viper
// (flags, environment, config file) and prompts for anything missing.
package settings

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/luxfi/cleanvault/pkg/core"
	"github.com/spf13/viper"
)

// Config keys.
const (
	KeyKeysPath        = "keys_path"
	KeyMasterKeyPath   = "master_key_path"
	KeyMasterPassword  = "master_password"
	KeyKeysPassword    = "keys_password"
	KeyRPCURL          = "rpc_url"
	KeyContract        = "contract"
	KeyScanConcurrency = "scan_concurrency"
	KeyMetricsAddr     = "metrics_addr"
	KeyOutputDir       = "output_dir"
	KeyLogLevel        = "log_level"
)

// EnvPrefix prefixes every environment variable read by viper.
const EnvPrefix = "CLEANVAULT"

// Settings are the validated inputs of a run.
type Settings struct {
	KeysPath        string
	MasterKeyPath   string
	MasterPassword  string
	KeysPassword    string
	RPCURL          string
	Contract        common.Address
	ScanConcurrency int
	MetricsAddr     string
	OutputDir       string
}

// Configure installs defaults and environment bindings on v.
func Configure(v *viper.Viper) {
	v.SetDefault(KeyRPCURL, "http://localhost:8545")
	v.SetDefault(KeyScanConcurrency, 16)
	v.SetDefault(KeyOutputDir, ".")
	v.SetDefault(KeyLogLevel, "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// The contract address is also accepted under its historical name.
	_ = v.BindEnv(KeyContract, EnvPrefix+"_CONTRACT", "CONTRACT_ADDRESS")
}

type field struct {
	key      string
	prompt   string
	fallback string
	secret   bool
	validate func(string) error
}

var operatorFields = []field{
	{
		key:      KeyKeysPath,
		prompt:   "Enter the path of your private keys folder",
		fallback: "/home/ubuntu/parity/keys/",
		validate: validateDir,
	},
	{
		key:      KeyMasterKeyPath,
		prompt:   "Enter the path of your Main Private Key file",
		fallback: "/home/ubuntu/MasterKey.json",
		validate: validateReadable,
	},
	{
		key:      KeyMasterPassword,
		prompt:   "Enter your Master Key password",
		secret:   true,
		validate: validateNonEmpty,
	},
	{
		key:      KeyKeysPassword,
		prompt:   "Enter your Slave Keys password",
		secret:   true,
		validate: validateNonEmpty,
	},
}

// Collect reads every setting from v, asking prompter for operator inputs that
// are not configured. A prompted value is asked again until it validates; a
// configured value that does not validate is rejected.
func Collect(v *viper.Viper, prompter Prompter) (*Settings, error) {
	values := make(map[string]string, len(operatorFields))
	for _, f := range operatorFields {
		value := strings.TrimSpace(v.GetString(f.key))
		if f.secret {
			value = v.GetString(f.key)
		}
		if value != "" {
			if err := f.validate(value); err != nil {
				return nil, core.ErrInvalidInput(f.key, err.Error())
			}
			values[f.key] = value
			continue
		}
		if prompter == nil {
			return nil, core.ErrInvalidInput(f.key, "value is required")
		}
		value, err := ask(prompter, f)
		if err != nil {
			return nil, err
		}
		values[f.key] = value
	}

	s := &Settings{
		KeysPath:        values[KeyKeysPath],
		MasterKeyPath:   values[KeyMasterKeyPath],
		MasterPassword:  values[KeyMasterPassword],
		KeysPassword:    values[KeyKeysPassword],
		ScanConcurrency: v.GetInt(KeyScanConcurrency),
		MetricsAddr:     strings.TrimSpace(v.GetString(KeyMetricsAddr)),
		OutputDir:       strings.TrimSpace(v.GetString(KeyOutputDir)),
	}
	endpoint, err := Endpoint(v)
	if err != nil {
		return nil, err
	}
	s.RPCURL = endpoint
	contract := strings.TrimSpace(v.GetString(KeyContract))
	if !common.IsHexAddress(contract) {
		return nil, core.ErrInvalidInputf(KeyContract, "%q is not a contract address", contract)
	}
	s.Contract = common.HexToAddress(contract)
	if s.ScanConcurrency <= 0 {
		return nil, core.ErrInvalidInputf(KeyScanConcurrency, "must be positive, got %d", s.ScanConcurrency)
	}
	if s.OutputDir == "" {
		s.OutputDir = "."
	}
	return s, nil
}

// Endpoint returns the configured node endpoint.
func Endpoint(v *viper.Viper) (string, error) {
	endpoint := strings.TrimSpace(v.GetString(KeyRPCURL))
	if endpoint == "" {
		return "", core.ErrInvalidInput(KeyRPCURL, "value is required")
	}
	return endpoint, nil
}

func ask(prompter Prompter, f field) (string, error) {
	for {
		var (
			value string
			err   error
		)
		if f.secret {
			value, err = prompter.AskSecret(f.prompt)
		} else {
			value, err = prompter.Ask(f.prompt, f.fallback)
			value = strings.TrimSpace(value)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", core.ErrInvalidInput(f.key, "no value entered")
			}
			return "", err
		}
		verr := f.validate(value)
		if verr == nil {
			return value, nil
		}
		prompter.Reject(verr.Error())
	}
}

func validateNonEmpty(value string) error {
	if value == "" {
		return errors.New("value is required")
	}
	return nil
}

func validateDir(value string) error {
	if err := validateNonEmpty(value); err != nil {
		return err
	}
	info, err := os.Stat(value)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New(value + " is not a directory")
	}
	return nil
}

func validateReadable(value string) error {
	if err := validateNonEmpty(value); err != nil {
		return err
	}
	f, err := os.Open(value)
	if err != nil {
		return err
	}
	return f.Close()
}
