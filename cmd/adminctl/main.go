package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/watchfi/storefront/pkg/config"
	"github.com/watchfi/storefront/pkg/logger"
	"github.com/watchfi/storefront/pkg/security"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "adminctl"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "hash", "command: hash|generate|verify")
	password := flag.String("password", "", "password to hash or verify (read from stdin when empty)")
	hash := flag.String("hash", "", "encoded hash for -cmd=verify")
	length := flag.Int("length", 20, "generated password length")
	flag.Parse()

	ctx := logg.WithField(context.Background(), "cmd", *cmd)
	cfg, err := config.LoadPassword()
	if err != nil {
		logg.Error(ctx, "failed to load password config", err)
		os.Exit(1)
	}

	switch *cmd {
	case "hash":
		encoded, err := security.HashPassword(readPassword(*password), cfg)
		if err != nil {
			fail(ctx, logg, "hash password", err)
		}
		fmt.Printf("%s=%s\n", config.EnvAdminPassword, encoded)

	case "generate":
		plain, err := security.GenerateTempPassword(*length)
		if err != nil {
			fail(ctx, logg, "generate password", err)
		}
		encoded, err := security.HashPassword(plain, cfg)
		if err != nil {
			fail(ctx, logg, "hash password", err)
		}
		fmt.Println("password:", plain)
		fmt.Printf("%s=%s\n", config.EnvAdminPassword, encoded)

	case "verify":
		if *hash == "" {
			fmt.Fprintln(os.Stderr, "missing -hash for verify")
			os.Exit(1)
		}
		ok, err := security.VerifyPassword(readPassword(*password), *hash)
		if err != nil {
			fail(ctx, logg, "verify password", err)
		}
		if !ok {
			fmt.Println("password does not match")
			os.Exit(2)
		}
		fmt.Println("password matches")
		if security.NeedsRehash(*hash, cfg) {
			fmt.Println("hash uses weaker parameters than the current config; run -cmd=hash to replace it")
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
}

func readPassword(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	fmt.Fprint(os.Stderr, "password: ")
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

func fail(ctx context.Context, logg *logger.Logger, msg string, err error) {
	logg.Error(ctx, msg, err)
	os.Exit(1)
}
