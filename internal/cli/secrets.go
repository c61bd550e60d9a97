package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"signal-executor/internal/api"
	"signal-executor/pkg/crypto"

	"github.com/spf13/cobra"
)

func newHashPassphraseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-passphrase [passphrase]",
		Short: "Print the bcrypt hash to set as WEBHOOK_PASSPHRASE_HASH",
		Long: `Hash a webhook passphrase. The passphrase is read from the argument or,
when omitted, from the first line of stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pass, err := argOrStdin(cmd, args)
			if err != nil {
				return err
			}
			hash, err := api.HashPassphrase(pass)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newEncryptSecretCmd() *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "encrypt-secret [secret]",
		Short: "Seal an API key or secret for the account file",
		Long: `Encrypt a credential with the newest MASTER_ENCRYPTION_KEY version, bound to
the account id. Paste the output as api_key or api_secret in the account file.
The secret is read from the argument or, when omitted, from stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if account == "" {
				return errors.New("--account is required")
			}
			secret, err := argOrStdin(cmd, args)
			if err != nil {
				return err
			}
			kr, err := crypto.LoadKeyring()
			if err != nil {
				return err
			}
			sealed, err := kr.Seal(secret, account)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "account id the secret belongs to")
	return cmd
}

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a random base64 key for MASTER_ENCRYPTION_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func argOrStdin(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("no input")
	}
	return line, nil
}
