// Package cli implements the maintenance subcommands.
package cli

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/whispered/usersd/internal/auth"
	"github.com/whispered/usersd/internal/config"
	"github.com/whispered/usersd/internal/database"
	"github.com/whispered/usersd/internal/database/users"
	"github.com/whispered/usersd/internal/entities"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9]{3,30}$`)

// CreateUserCommand seeds an account directly into the database.
// Registration over HTTP requires an authenticated caller, so the first
// account has to come from here.
type CreateUserCommand struct {
	Username     string
	Password     string
	DatabasePath string
	BcryptCost   int
	Extra        string
}

func NewCreateUserCommand() *CreateUserCommand {
	return &CreateUserCommand{}
}

func (cmd *CreateUserCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ExitOnError)

	fs.StringVar(&cmd.Username, "username", "", "Username, 3-30 alphanumeric characters (required)")
	fs.StringVar(&cmd.Password, "password", "", "Password (required)")
	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the users database file")
	fs.IntVar(&cmd.BcryptCost, "cost", 10, "bcrypt cost factor")
	fs.StringVar(&cmd.Extra, "extra", "", "Extra profile fields as comma-separated key=value pairs")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s create-user -username <name> -password <password> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Create a user account directly in the database.\n\n")
		fmt.Fprintf(os.Stderr, "The POST /api/users endpoint only accepts requests from an already\n")
		fmt.Fprintf(os.Stderr, "authenticated caller, so the first account must be seeded this way.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s create-user -username admin -password 'secret123'\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s create-user -username alice -password 'secret123' -extra 'name=Alice,team=ops'\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if !usernamePattern.MatchString(cmd.Username) {
		fs.Usage()
		return fmt.Errorf("username must be 3-30 alphanumeric characters")
	}
	if cmd.Password == "" {
		fs.Usage()
		return fmt.Errorf("-password is required")
	}
	return nil
}

func (cmd *CreateUserCommand) Run() error {
	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	repo := users.NewRepository(db.DB)

	exists, err := repo.Exists(cmd.Username)
	if err != nil {
		return fmt.Errorf("check existing user: %w", err)
	}
	if exists {
		return fmt.Errorf("username %q already exists", strings.ToLower(cmd.Username))
	}

	hash, err := auth.HashPassword(cmd.Password, cmd.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	extra, err := parseExtraFields(cmd.Extra)
	if err != nil {
		return err
	}

	user := &entities.User{
		Username:     cmd.Username,
		PasswordHash: hash,
		Extra:        extra,
	}
	if err := repo.Create(user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Printf("Created user %q (id %d)\n", user.Username, user.ID)
	return nil
}

func parseExtraFields(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	extra := make(map[string]any)
	for _, pair := range strings.Split(raw, ",") {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("invalid -extra pair %q, expected key=value", pair)
		}
		extra[key] = strings.TrimSpace(value)
	}
	return extra, nil
}
