package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli"

	"github.com/taskfuse/taskfuse/internal/config"
	"github.com/taskfuse/taskfuse/pkg/credstore"
)

var credUsername string

// openCredStore unlocks the same store the daemon reads at startup, so
// a credential set here is picked up on the next daemon restart.
func openCredStore() (*credstore.Store, error) {
	cfg := config.FromEnv()
	key, err := credstore.LoadOrCreateKey(filepath.Dir(cfg.CredFile))
	if err != nil {
		return nil, fmt.Errorf("cannot unlock the credential store: %w", err)
	}
	return credstore.Open(cfg.CredFile, key)
}

func credentialSet(ctx *cli.Context) error {
	name := ctx.Args().First()
	if name == "" {
		return fmt.Errorf("expected a credential name (exchange|timetable|todo)")
	}

	fmt.Fprintf(os.Stderr, "secret for %q: ", name)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read secret: %w", err)
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return fmt.Errorf("empty secret")
	}

	s, err := openCredStore()
	if err != nil {
		return err
	}
	if err := s.Set(credstore.Credential{Name: name, Username: credUsername, Secret: secret}); err != nil {
		return err
	}
	fmt.Printf("credential %q stored\n", name)
	return nil
}

func credentialList(*cli.Context) error {
	s, err := openCredStore()
	if err != nil {
		return err
	}
	names := s.Names()
	if len(names) == 0 {
		fmt.Println("no credentials stored")
		return nil
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func credentialRemove(ctx *cli.Context) error {
	name := ctx.Args().First()
	if name == "" {
		return fmt.Errorf("expected a credential name")
	}
	s, err := openCredStore()
	if err != nil {
		return err
	}
	if err := s.Delete(name); err != nil {
		return err
	}
	fmt.Printf("credential %q removed\n", name)
	return nil
}
