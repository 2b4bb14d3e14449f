package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/whispered/usersd/internal/auth"
)

// GenSecretCommand prints a fresh random signing secret.
type GenSecretCommand struct{}

func NewGenSecretCommand() *GenSecretCommand {
	return &GenSecretCommand{}
}

func (cmd *GenSecretCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("gen-secret", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s gen-secret\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate a random secret for SESSION_PRIVATE_KEY.\n")
	}
	return fs.Parse(args)
}

func (cmd *GenSecretCommand) Run() error {
	secret, err := auth.GenerateSessionSecret()
	if err != nil {
		return fmt.Errorf("generate secret: %w", err)
	}
	fmt.Println(secret)
	return nil
}
