package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/stemsi/labquiz/internal/config"
	"github.com/stemsi/labquiz/internal/logger"
	"github.com/stemsi/labquiz/internal/service"
	"golang.org/x/term"
)

// minPasswordLength applies to interactive input only.
const minPasswordLength = 6

func main() {
	var fromStdin bool
	flag.BoolVar(&fromStdin, "stdin", false, "Read one password per line from stdin and print one hash per line")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	auth := service.NewAuthService(cfg)

	if fromStdin {
		// Batch mode for filling the roster's password column.
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			password := strings.TrimSpace(scanner.Text())
			if password == "" {
				fmt.Println()
				continue
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to hash password")
			}
			fmt.Println(hash)
		}
		if err := scanner.Err(); err != nil {
			log.Fatal().Err(err).Msg("Failed to read stdin")
		}
		return
	}

	// ─── CLI Input ─────────────────────────────────────────────────────
	fmt.Fprintln(os.Stderr, "=== Hash Password ===")

	fmt.Fprint(os.Stderr, "Enter Password: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error reading password")
		os.Exit(1)
	}
	if len(first) < minPasswordLength {
		fmt.Fprintf(os.Stderr, "Error: Password must be at least %d characters\n", minPasswordLength)
		os.Exit(1)
	}

	fmt.Fprint(os.Stderr, "Confirm Password: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil || string(first) != string(second) {
		fmt.Fprintln(os.Stderr, "Error: Passwords do not match")
		os.Exit(1)
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	hash, err := auth.HashPassword(string(first))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	// The hash goes to stdout so it can be piped into ADMIN_PASSWORD or the roster.
	fmt.Println(hash)
}
