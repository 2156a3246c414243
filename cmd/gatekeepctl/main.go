package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hnrobert/gatekeep/internal/auth"
	"github.com/hnrobert/gatekeep/internal/bootstrap"
	"github.com/hnrobert/gatekeep/internal/config"
	"github.com/hnrobert/gatekeep/internal/credstore"
	"github.com/hnrobert/gatekeep/internal/logger"
)

const usage = `usage: gatekeepctl [-config file] <command> [args]

commands:
  hash               print a bcrypt hash for a password read from the terminal
  passwd <username>  set or create a user's password in users.txt
  userdel <username> remove a user from users.txt
  users              list users and their hash schemes
  welcome            show the first-run credentials once and delete them

Send SIGHUP to a running gatekeepd to pick up changes to users.txt.
`

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "gatekeepctl:", err)
		os.Exit(1)
	}
}

func run(args []string, in *os.File, out io.Writer) error {
	fs := flag.NewFlagSet("gatekeepctl", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { fmt.Fprint(out, usage) }
	configPath := fs.String("config", os.Getenv(config.EnvConfig), "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	// Store and hasher chatter belongs in the daemon's log, not on the terminal.
	logger.SetOutput(io.Discard)
	defer logger.SetOutput(nil)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "hash":
		return cmdHash(cfg, in, out)
	case "passwd":
		if len(rest) != 1 {
			return errors.New("usage: gatekeepctl passwd <username>")
		}
		return cmdPasswd(cfg, rest[0], in, out)
	case "userdel":
		if len(rest) != 1 {
			return errors.New("usage: gatekeepctl userdel <username>")
		}
		return cmdUserdel(cfg, rest[0], out)
	case "users":
		return cmdUsers(cfg, out)
	case "welcome":
		return cmdWelcome(cfg, out)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHash(cfg config.Config, in *os.File, out io.Writer) error {
	pw, err := promptNewPassword(in, out, cfg.Auth.MinPasswordLength)
	if err != nil {
		return err
	}
	h, err := auth.NewHasher().Hash(pw)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, h)
	return nil
}

func openStore(cfg config.Config) (*credstore.Store, error) {
	s := credstore.New(cfg.UsersPath(), credstore.WithStrict(cfg.Auth.StrictStore))
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

func cmdPasswd(cfg config.Config, username string, in *os.File, out io.Writer) error {
	if !credstore.ValidUsername(username) {
		return fmt.Errorf("%w: %q", credstore.ErrInvalidUsername, username)
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	pw, err := promptNewPassword(in, out, cfg.Auth.MinPasswordLength)
	if err != nil {
		return err
	}
	h, err := auth.NewHasher().Hash(pw)
	if err != nil {
		return err
	}
	_, existed := store.Lookup(username)
	if err := store.SetHash(username, h); err != nil {
		return err
	}
	if existed {
		fmt.Fprintf(out, "Password updated for %s\n", username)
	} else {
		fmt.Fprintf(out, "Created user %s\n", username)
	}
	return nil
}

func cmdUserdel(cfg config.Config, username string, out io.Writer) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if store.Len() == 1 {
		if _, ok := store.Lookup(username); ok {
			return errors.New("refusing to delete the last user")
		}
	}
	if err := store.Delete(username); err != nil {
		return fmt.Errorf("%s: %w", username, err)
	}
	fmt.Fprintf(out, "Deleted user %s\n", username)
	return nil
}

func cmdUsers(cfg config.Config, out io.Writer) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	for _, name := range store.Usernames() {
		h, _ := store.Lookup(name)
		scheme := "unsupported"
		if f, err := auth.ParseHash(h); err == nil {
			scheme = f.Scheme()
		}
		fmt.Fprintf(out, "%-24s %s\n", name, scheme)
	}
	return nil
}

func cmdWelcome(cfg config.Config, out io.Writer) error {
	creds, err := bootstrap.New(cfg.DataDir).RetrieveOnce()
	if err != nil {
		return err
	}
	if creds == nil {
		fmt.Fprintln(out, "No first-run credentials are waiting.")
		return nil
	}
	rule := strings.Repeat("-", 40)
	fmt.Fprintf(out, "%s\nUSERNAME: %s\nPASSWORD: %s\n%s\nThese will not be shown again.\n", rule, creds.Username, creds.Password, rule)
	return nil
}
