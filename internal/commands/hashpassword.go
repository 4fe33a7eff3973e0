package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/klabast/wb-services/plaza/internal/admin"
)

func newHashPasswordCommand(a *App) *cobra.Command {
	var overwrite, insecureUnmask bool
	var authFile string

	cmd := &cobra.Command{
		Use:     "hash-password",
		Short:   "Create an auth file with a hashed admin password (Argon2id)",
		GroupID: "management",
		Long: `Prompts for a username and password and writes "username:hash" to the
auth file. Point admin.auth_file (PLAZA_ADMIN_AUTH_FILE) at it to use it
instead of the plain admin user and password.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if authFile == "" {
				authFile = a.cfg.Admin.AuthFile
			}
			if authFile == "" {
				authFile = admin.DefaultAuthFile
			}

			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), insecureUnmask)
			username, err := p.line("Enter username: ")
			if err != nil {
				return fmt.Errorf("error reading username: %w", err)
			}
			if username == "" {
				return fmt.Errorf("username cannot be empty")
			}

			password, err := p.secret("Enter password:   ")
			if err != nil {
				return fmt.Errorf("error reading password: %w", err)
			}
			confirm, err := p.secret("Confirm password: ")
			if err != nil {
				return fmt.Errorf("error reading password confirmation: %w", err)
			}
			if password == "" {
				return fmt.Errorf("password cannot be empty")
			}
			if password != confirm {
				return fmt.Errorf("passwords do not match")
			}

			if err := admin.WriteAuthFile(authFile, username, password, overwrite); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Auth file written to %s\n", authFile)
			return nil
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "overwrite an existing auth file without asking")
	cmd.Flags().BoolVar(&insecureUnmask, "insecure-unmask-password", false, "show the password as plain text (INSECURE!)")
	cmd.Flags().StringVar(&authFile, "auth-file", "", "path to the auth file (default admin.auth_file or ./auth.secret)")
	return cmd
}

// prompter reads answers from a terminal with masked passwords, or line by
// line from anything else.
type prompter struct {
	in       io.Reader
	reader   *bufio.Reader
	out      io.Writer
	errOut   io.Writer
	unmasked bool
	terminal bool
}

func newPrompter(in io.Reader, out, errOut io.Writer, unmasked bool) *prompter {
	p := &prompter{in: in, reader: bufio.NewReader(in), out: out, errOut: errOut, unmasked: unmasked}
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		p.terminal = true
	}
	if unmasked {
		fmt.Fprintln(errOut, "WARNING: Password will be visible on screen!")
	}
	return p
}

func (p *prompter) line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	s, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

func (p *prompter) secret(prompt string) (string, error) {
	if p.unmasked || !p.terminal {
		return p.line(prompt)
	}
	return p.masked(prompt, int(p.in.(*os.File).Fd()))
}

// masked reads a password in raw mode, echoing an asterisk per character
func (p *prompter) masked(prompt string, fd int) (string, error) {
	fmt.Fprint(p.out, prompt)

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		// fall back to hidden input
		password, err := term.ReadPassword(fd)
		fmt.Fprintln(p.out)
		return string(password), err
	}
	defer func() { _ = term.Restore(fd, oldState) }()

	var password []byte
	for {
		char, _, err := p.reader.ReadRune()
		if err != nil {
			fmt.Fprint(p.out, "\r\n")
			return string(password), nil
		}

		switch char {
		case '\n', '\r':
			fmt.Fprint(p.out, "\r\n")
			return string(password), nil
		case 127, 8: // backspace, delete
			if len(password) > 0 {
				password = password[:len(password)-1]
				fmt.Fprint(p.out, "\b \b")
			}
		case 3: // ctrl+c
			fmt.Fprint(p.out, "\r\n")
			return "", fmt.Errorf("interrupted")
		default:
			if char >= 32 && char <= 126 {
				password = append(password, byte(char))
				fmt.Fprint(p.out, "*")
			}
		}
	}
}
