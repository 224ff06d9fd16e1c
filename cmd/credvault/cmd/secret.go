package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jmcleod/credvault/crypto"
	"github.com/jmcleod/credvault/internal/config"
	"github.com/jmcleod/credvault/internal/util"
)

// readPassword is swapped out in tests so no terminal is needed.
var readPassword = term.ReadPassword

// stdinIsTerminal reports whether the process reads from an interactive terminal.
var stdinIsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

// sealedSecret is the portable form written by "secret seal". Byte fields
// encode as base64.
type sealedSecret struct {
	Scheme     string `json:"scheme"`
	Ciphertext []byte `json:"ciphertext"`
	Salt       []byte `json:"salt"`
}

type secretFlags struct {
	in              string
	out             string
	kdf             string
	kdfProfile      string
	cipher          string
	passphraseStdin bool
}

func (f *secretFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.in, "in", "", "Read input from this file instead of stdin")
	fs.StringVar(&f.out, "out", "", "Write output to this file instead of stdout")
	fs.StringVar(&f.kdf, "kdf", config.KDFPBKDF2, "Key derivation: pbkdf2 or argon2id")
	fs.StringVar(&f.kdfProfile, "kdf-profile", "moderate", "Argon2id profile: interactive, moderate or sensitive")
	fs.StringVar(&f.cipher, "cipher", config.CipherAESGCM, "Cipher: aes-gcm or xchacha20poly1305")
	fs.BoolVar(&f.passphraseStdin, "passphrase-stdin", false, "Read the master passphrase from the first line of stdin")
}

func (f *secretFlags) service() (*crypto.Service, error) {
	cfg := config.Config{KDF: f.kdf, KDFProfile: f.kdfProfile, Cipher: f.cipher}
	return cfg.SecretService()
}

func newSecretCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "secret",
		Short: "Seal and reveal secrets offline",
		Long: `Seal and reveal secrets with the same key derivation and ciphers the
server uses, without running the server.`,
	}
	c.AddCommand(newSealCmd(), newRevealCmd())
	return c
}

func newSealCmd() *cobra.Command {
	var flags secretFlags
	c := &cobra.Command{
		Use:   "seal",
		Short: "Encrypt a secret under a master passphrase",
		Long: `Encrypt the input under a key derived from a master passphrase and print a
JSON document holding the scheme, ciphertext and salt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			memguard.CatchInterrupt()
			defer memguard.Purge()

			svc, err := flags.service()
			if err != nil {
				return err
			}
			stdin := bufio.NewReader(cmd.InOrStdin())
			passphrase, err := readPassphrase(cmd, stdin, flags.passphraseStdin, true)
			if err != nil {
				return err
			}
			defer passphrase.Destroy()

			plaintext, err := readInput(stdin, flags.in)
			if err != nil {
				return err
			}
			defer memguard.WipeBytes(plaintext)
			if len(plaintext) == 0 {
				return errors.New("nothing to seal")
			}

			ciphertext, salt, err := svc.StoreSecret(plaintext, passphrase.Bytes())
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(sealedSecret{
				Scheme:     svc.Scheme(),
				Ciphertext: ciphertext,
				Salt:       salt,
			}, "", "  ")
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), flags.out, append(out, '\n'))
		},
	}
	flags.register(c)
	return c
}

func newRevealCmd() *cobra.Command {
	var flags secretFlags
	c := &cobra.Command{
		Use:   "reveal",
		Short: "Decrypt a secret produced by seal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			memguard.CatchInterrupt()
			defer memguard.Purge()

			svc, err := flags.service()
			if err != nil {
				return err
			}
			stdin := bufio.NewReader(cmd.InOrStdin())
			passphrase, err := readPassphrase(cmd, stdin, flags.passphraseStdin, false)
			if err != nil {
				return err
			}
			defer passphrase.Destroy()

			raw, err := readInput(stdin, flags.in)
			if err != nil {
				return err
			}
			var sealed sealedSecret
			if err := json.Unmarshal(raw, &sealed); err != nil {
				return fmt.Errorf("failed to parse sealed secret: %w", err)
			}
			if sealed.Scheme != "" && sealed.Scheme != svc.Scheme() {
				return fmt.Errorf("secret was sealed with %s but flags select %s", sealed.Scheme, svc.Scheme())
			}

			plaintext, err := svc.RevealSecret(sealed.Ciphertext, sealed.Salt, passphrase.Bytes())
			if err != nil {
				return err
			}
			defer memguard.WipeBytes(plaintext)
			return writeOutput(cmd.OutOrStdout(), flags.out, plaintext)
		},
	}
	flags.register(c)
	return c
}

// readPassphrase returns the NFKD-normalised master passphrase in a locked buffer. With
// fromStdin the first line of stdin is used; otherwise the user is prompted
// on the terminal, twice when confirm is set.
func readPassphrase(cmd *cobra.Command, stdin *bufio.Reader, fromStdin, confirm bool) (*memguard.LockedBuffer, error) {
	if fromStdin {
		line, err := stdin.ReadBytes('\n')
		if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
			return nil, fmt.Errorf("failed to read passphrase: %w", err)
		}
		pw := bytes.TrimRight(line, "\r\n")
		if len(pw) == 0 {
			memguard.WipeBytes(line)
			return nil, errors.New("passphrase must not be empty")
		}
		buf := lockNormalized(pw)
		memguard.WipeBytes(line)
		return buf, nil
	}

	if !stdinIsTerminal() {
		return nil, errors.New("stdin is not a terminal; use --passphrase-stdin")
	}
	w := cmd.ErrOrStderr()
	fmt.Fprint(w, "Master passphrase: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	if len(pw) == 0 {
		return nil, errors.New("passphrase must not be empty")
	}
	if confirm {
		fmt.Fprint(w, "Confirm passphrase: ")
		again, err := readPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(w)
		if err != nil {
			memguard.WipeBytes(pw)
			return nil, fmt.Errorf("failed to read passphrase: %w", err)
		}
		match := bytes.Equal(pw, again)
		memguard.WipeBytes(again)
		if !match {
			memguard.WipeBytes(pw)
			return nil, errors.New("passphrases do not match")
		}
	}
	return lockNormalized(pw), nil
}

// lockNormalized moves the NFKD form of pw into a locked buffer and wipes pw,
// matching how the server treats passphrases.
func lockNormalized(pw []byte) *memguard.LockedBuffer {
	buf := memguard.NewBufferFromBytes(util.NormalizeBytes(pw))
	memguard.WipeBytes(pw)
	return buf
}

// readInput reads the named file, or whatever remains on stdin when path is
// empty. A single trailing newline from stdin is dropped.
func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	if n := len(data); n > 0 && data[n-1] == '\n' {
		data = data[:n-1]
		if n := len(data); n > 0 && data[n-1] == '\r' {
			data = data[:n-1]
		}
	}
	return data, nil
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(newSecretCmd())
}
