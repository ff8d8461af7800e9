// Command devtoken prints bearer tokens for local development.
//
//	devtoken -user alice -user bob
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"go-social/internal/config"
	"go-social/internal/logger"
	"go-social/internal/user"
)

type names []string

func (n *names) String() string { return strings.Join(*n, ",") }

func (n *names) Set(v string) error {
	*n = append(*n, v)
	return nil
}

func main() {
	var users names
	flag.Var(&users, "user", "username to issue a token for (repeatable)")
	ttl := flag.Duration("ttl", 0, "token lifetime, defaults to JWT_TTL")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *ttl > 0 {
		cfg.Auth.TokenTTL = *ttl
	}
	log := logger.New(cfg)
	if len(users) == 0 {
		users = cfg.Service.SeedUsers
	}

	ctx := context.Background()
	issuer, err := user.NewIssuer(ctx, cfg)
	if err != nil {
		log.Error("devtoken - open - failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer issuer.Close()

	for _, name := range users {
		token, u, err := issuer.Token(ctx, name)
		if err != nil {
			log.Error("devtoken - issue - failed", slog.String("user", name), slog.Any("error", err))
			os.Exit(1)
		}
		fmt.Printf("%s\t%d\t%s\n", u.Username, u.ID, token)
	}
}
