package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"signal-executor/pkg/crypto"

	"gopkg.in/yaml.v3"
)

// Account is one exchange account entry of the account file. Fields left out
// of the file keep the defaults set by UnmarshalYAML.
type Account struct {
	ID                          string        `yaml:"id"`
	APIKey                      string        `yaml:"api_key"`
	APISecret                   string        `yaml:"api_secret"`
	RiskPercentage              float64       `yaml:"risk_percentage"`
	Leverage                    int           `yaml:"leverage"`
	ProfitLockThreshold         float64       `yaml:"profit_lock_threshold"`
	InitialStopLossPercentage   float64       `yaml:"initial_sl_percentage"`
	InitialTakeProfitPercentage float64       `yaml:"initial_tp_percentage"`
	BalanceThreshold            float64       `yaml:"balance_threshold"`
	MonitoringActive            bool          `yaml:"monitoring_active"`
	IsTestnet                   bool          `yaml:"is_testnet"`
	Enabled                     bool          `yaml:"enabled"`
	MonitorInterval             time.Duration `yaml:"monitor_interval"`
	CancelReplacedStops         bool          `yaml:"cancel_replaced_stops"`
}

// DefaultAccount returns an entry carrying every default.
func DefaultAccount() Account {
	return Account{
		RiskPercentage:              1.0,
		Leverage:                    5,
		ProfitLockThreshold:         0.1,
		InitialStopLossPercentage:   0.05,
		InitialTakeProfitPercentage: 0.3,
		BalanceThreshold:            100,
		MonitoringActive:            true,
		Enabled:                     true,
		MonitorInterval:             5 * time.Second,
	}
}

// UnmarshalYAML applies defaults before decoding the node.
func (a *Account) UnmarshalYAML(value *yaml.Node) error {
	type plain Account
	out := plain(DefaultAccount())
	if err := value.Decode(&out); err != nil {
		return err
	}
	*a = Account(out)
	return nil
}

// Validate checks ranges.
func (a Account) Validate(requireCredentials bool) error {
	var errs []error
	if strings.TrimSpace(a.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if requireCredentials && (a.APIKey == "" || a.APISecret == "") {
		errs = append(errs, errors.New("api_key and api_secret are required"))
	}
	if a.RiskPercentage <= 0 || a.RiskPercentage > 100 {
		errs = append(errs, fmt.Errorf("risk_percentage %v out of range (0,100]", a.RiskPercentage))
	}
	if a.Leverage < 1 || a.Leverage > 125 {
		errs = append(errs, fmt.Errorf("leverage %d out of range [1,125]", a.Leverage))
	}
	if a.ProfitLockThreshold <= 0 {
		errs = append(errs, fmt.Errorf("profit_lock_threshold %v must be positive", a.ProfitLockThreshold))
	}
	if a.InitialStopLossPercentage <= 0 || a.InitialStopLossPercentage >= 1 {
		errs = append(errs, fmt.Errorf("initial_sl_percentage %v out of range (0,1)", a.InitialStopLossPercentage))
	}
	if a.InitialTakeProfitPercentage <= 0 {
		errs = append(errs, fmt.Errorf("initial_tp_percentage %v must be positive", a.InitialTakeProfitPercentage))
	}
	if a.BalanceThreshold < 0 {
		errs = append(errs, fmt.Errorf("balance_threshold %v must not be negative", a.BalanceThreshold))
	}
	if a.MonitorInterval < 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("monitor_interval %s too short", a.MonitorInterval))
	}
	if len(errs) > 0 {
		return fmt.Errorf("account %q: %w", a.ID, errors.Join(errs...))
	}
	return nil
}

// AccountFile is the top-level YAML structure.
type AccountFile struct {
	Accounts []Account `yaml:"accounts"`
}

// SecretOpener decrypts sealed credentials; *crypto.Keyring implements it.
type SecretOpener interface {
	Open(sealed, accountID string) (string, error)
}

// LoadOptions controls validation and decryption.
type LoadOptions struct {
	// Opener is required only when the file holds sealed values.
	Opener SecretOpener
	// RequireCredentials is false for dry runs, where no venue is contacted.
	RequireCredentials bool
}

// LoadAccounts reads, validates and decrypts the account file at path. When
// the file holds sealed values and opts.Opener is nil, the keyring is loaded
// from the environment.
func LoadAccounts(path string, opts LoadOptions) ([]Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read account file: %w", err)
	}
	if opts.Opener == nil && HasSealedSecrets(data) {
		kr, err := crypto.LoadKeyring()
		if err != nil {
			return nil, fmt.Errorf("account file has sealed credentials: %w", err)
		}
		opts.Opener = kr
	}
	accounts, err := ParseAccounts(data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return accounts, nil
}

// ParseAccounts is LoadAccounts over raw YAML.
func ParseAccounts(data []byte, opts LoadOptions) ([]Account, error) {
	var file AccountFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse account file: %w", err)
	}
	if len(file.Accounts) == 0 {
		return nil, errors.New("account file lists no accounts")
	}

	seen := make(map[string]bool, len(file.Accounts))
	for i := range file.Accounts {
		a := &file.Accounts[i]
		a.ID = strings.TrimSpace(a.ID)
		if seen[a.ID] {
			return nil, fmt.Errorf("duplicate account id %q", a.ID)
		}
		seen[a.ID] = true

		if err := openSecrets(a, opts.Opener); err != nil {
			return nil, err
		}
		if err := a.Validate(opts.RequireCredentials); err != nil {
			return nil, err
		}
	}
	return file.Accounts, nil
}

func openSecrets(a *Account, opener SecretOpener) error {
	for _, field := range []*string{&a.APIKey, &a.APISecret} {
		if !crypto.IsSealed(*field) {
			continue
		}
		if opener == nil {
			return fmt.Errorf("account %q: sealed credential but no %s configured", a.ID, crypto.EnvKeyPrefix)
		}
		plain, err := opener.Open(*field, a.ID)
		if err != nil {
			return fmt.Errorf("account %q: open credential: %w", a.ID, err)
		}
		*field = plain
	}
	return nil
}

// HasSealedSecrets reports whether the raw file contains sealed values, so
// callers know whether a keyring must be loaded.
func HasSealedSecrets(data []byte) bool {
	return strings.Contains(string(data), "ENC[v")
}
