package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ldi/cadence/internal/config"
	"github.com/ldi/cadence/internal/db"
)

func runInit(args []string, dbPath string, out io.Writer) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	cadenceDir := filepath.Join(targetDir, config.DefaultDir)
	if err := os.MkdirAll(cadenceDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", config.DefaultDir, err)
	}
	fmt.Fprintf(out, "✓ Created %s/ directory\n", config.DefaultDir)

	gitignorePath := filepath.Join(cadenceDir, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte("cadence.db*\nconfig.yaml\n"), 0644); err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}
	fmt.Fprintf(out, "✓ Created %s/.gitignore\n", config.DefaultDir)

	cfgPath := config.DefaultPath(targetDir)
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.Default()
		cfg.Auth.JWTSecret = newSecret()
		if err := cfg.Save(cfgPath); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Wrote default config to %s\n", cfgPath)
	} else {
		fmt.Fprintf(out, "✓ Kept existing config at %s\n", cfgPath)
	}

	finalDBPath := dbPath
	if finalDBPath == "" {
		finalDBPath = filepath.Join(targetDir, config.DefaultDBPath)
	}

	database, err := db.Open(finalDBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Init(context.Background()); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	fmt.Fprintf(out, "✓ Initialized database at %s\n", finalDBPath)

	fmt.Fprintln(out, "✓ Cadence initialized successfully")
	return nil
}

// newSecret returns 64 hex characters from two random UUIDs.
func newSecret() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}
