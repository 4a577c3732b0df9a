package main

import (
	"errors"
	"fmt"
	"time"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/pkg/utils"
	"github.com/spf13/cobra"
)

// secretBytes encodes to a 32 character key, which also suits AES-256.
const secretBytes = 24

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "operator-token",
		Short:        "Operator credentials for the postflow API",
		SilenceUsage: true,
	}

	cmd.AddCommand(newIssueCommand(), newSecretCommand(), newSealCommand())
	return cmd
}

func newIssueCommand() *cobra.Command {
	var (
		operator string
		ttl      time.Duration
		secret   string
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a bearer token for an operator",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = config.LoadConfig().SecretKey
			}
			if secret == "" {
				return errors.New("no signing secret: set SECRET_KEY or pass --secret")
			}

			token, err := utils.GenerateToken(secret, operator, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&operator, "operator", "o", "operator", "operator id put in the token")
	cmd.Flags().DurationVarP(&ttl, "ttl", "t", 24*time.Hour, "token lifetime")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret, defaults to SECRET_KEY")
	return cmd
}

func newSecretCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "secret",
		Short: "Generate a random value for SECRET_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := utils.GenerateRandomKey(secretBytes)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func newSealCommand() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "seal <platform-token>",
		Short: "Encrypt a platform access token for storing on a social account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = config.LoadConfig().SecretKey
			}
			if secret == "" {
				return errors.New("no encryption secret: set SECRET_KEY or pass --secret")
			}

			sealed, err := utils.Encrypt([]byte(args[0]), []byte(secret))
			if err != nil {
				return fmt.Errorf("encrypt token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "encryption secret, defaults to SECRET_KEY")
	return cmd
}
