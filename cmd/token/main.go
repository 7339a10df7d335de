// Command token mints development bearer tokens for the registry API and
// revokes them through the shared revocation list.
//
//	token -sub 0xA11CE -ttl 1h
//	token -revoke <jti> -ttl 1h
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"propreg/internal/identity"
	"propreg/internal/platform/config"
	"propreg/internal/platform/logger"
	"propreg/internal/platform/redis"
	"propreg/pkg/domain"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("token: %v", err)
	}
}

type options struct {
	subject string
	revoke  string
	ttl     time.Duration
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var opts options
	fs.StringVar(&opts.subject, "sub", "", "principal to issue a token for")
	fs.StringVar(&opts.revoke, "revoke", "", "token id (jti) to revoke")
	fs.DurationVar(&opts.ttl, "ttl", 0, "token lifetime, or how long a revocation is kept (default from config)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if (opts.subject == "") == (opts.revoke == "") {
		return options{}, fmt.Errorf("exactly one of -sub or -revoke is required")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, out io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if opts.ttl <= 0 {
		opts.ttl = cfg.Auth.TokenTTL
	}

	if opts.revoke != "" {
		return revoke(ctx, cfg, opts)
	}

	principal, err := domain.ParsePrincipal(opts.subject)
	if err != nil {
		return err
	}
	tokens := identity.NewTokenService(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	token, claims, err := tokens.Issue(principal, opts.ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\n# jti=%s expires=%s\n", token, claims.ID, claims.ExpiresAt.Time.Format(time.RFC3339))
	return err
}

func revoke(ctx context.Context, cfg config.Config, opts options) error {
	client, err := redis.New(ctx, cfg.Redis, logger.New(cfg.LogLevel))
	if err != nil {
		return err
	}
	if client == nil {
		return fmt.Errorf("revocation needs PROPREG_REDIS_URL; in-memory revocations are per process")
	}
	defer client.Close()

	return identity.NewRedisRevocations(client.Client).Revoke(ctx, opts.revoke, opts.ttl)
}
