package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ldi/cadence/internal/auth"
	"github.com/ldi/cadence/internal/mcp"
	"github.com/ldi/cadence/internal/server"
)

func (a *app) runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	addr := fs.String("addr", a.cfg.Server.Addr, "Address to listen on")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not set; run cadence init or set CADENCE_JWT_SECRET")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	engine := a.engine(database)
	if stopWatch, err := a.watchWeights(engine); err != nil {
		log.Printf("config watch disabled: %v", err)
	} else {
		defer stopWatch()
	}

	srv := server.NewServer(database, engine, a.habitService(database), []byte(a.cfg.Auth.JWTSecret), a.cfg.Server.AllowedOrigins)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("cadence API listening on %s", *addr)
	if err := srv.Start(*addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *app) runMCP(args []string) error {
	ctx := context.Background()
	database, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	engine := a.engine(database)
	if stopWatch, err := a.watchWeights(engine); err == nil {
		defer stopWatch()
	}

	s := mcp.NewServer(database, engine, a.habitService(database), a.cfg.User)
	return mcp.Serve(s)
}

func (a *app) runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	user := fs.String("user", a.cfg.User, "User id to put in the token")
	ttl := fs.Duration("ttl", a.cfg.Auth.TokenTTL, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not set; run cadence init or set CADENCE_JWT_SECRET")
	}

	token, err := auth.GenerateToken([]byte(a.cfg.Auth.JWTSecret), *user, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, token)
	return nil
}

func (a *app) runExport(args []string) error {
	path := a.cfg.Export.Path
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		path = ".cadence/decisions.jsonl"
	}

	ctx := context.Background()
	database, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.ExportDecisionLogs(ctx, path); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Exported decision logs to %s\n", path)
	return nil
}

func (a *app) runImport(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: cadence import <path>")
	}

	ctx := context.Background()
	database, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	n, err := database.ImportDecisionLogs(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Imported %d decision logs from %s\n", n, args[0])
	return nil
}
