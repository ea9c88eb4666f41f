package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meigma/bundle/crypt"
)

func newEncryptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt IN OUT",
		Short: "Encrypt a bundle with the configured password and salt",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.transformFile(args[0], args[1], func(c *crypt.Cipher, data []byte) ([]byte, error) {
				return c.Encrypt(data), nil
			})
		},
	}
}

func newDecryptCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt IN OUT",
		Short: "Decrypt a bundle with the configured password and salt",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.transformFile(args[0], args[1], (*crypt.Cipher).Decrypt)
		},
	}
}

func (a *app) transformFile(in, out string, fn func(*crypt.Cipher, []byte) ([]byte, error)) error {
	if a.cfg.Password == "" {
		return errors.New("password is required (--password or BUNDLECTL_PASSWORD)")
	}
	c, err := crypt.New([]byte(a.cfg.Password), []byte(a.cfg.Salt))
	if err != nil {
		return err
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	result, err := fn(c, data)
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}
	if err := os.WriteFile(out, result, 0o644); err != nil { //nolint:gosec // bundles are published files
		return fmt.Errorf("write output: %w", err)
	}
	a.logger.Debug("file transformed", "in", in, "out", out, "bytes", len(result))
	return nil
}
