package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/forcerank/forcerank/auth"
	"github.com/forcerank/forcerank/auth/sessions"
	"github.com/forcerank/forcerank/internal/config"
	"github.com/forcerank/forcerank/salesforce"
	"github.com/forcerank/forcerank/server"
	fakeuserrepo "github.com/forcerank/forcerank/users/repofake"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()
	c := config.New()
	configureLogging(c)
	displayAppname(c.GetAppName())

	sfClient := salesforce.New(salesforce.Config{
		LoginURL:     c.GetLoginURL(),
		ClientID:     c.GetClientID(),
		ClientSecret: c.GetClientSecret(),
		RedirectURI:  c.GetRedirectURI(),
	})

	sessionRepo, err := buildSessionRepo(c)
	if err != nil {
		return fmt.Errorf("build session repo: %w", err)
	}

	// TODO swap for the SQL-backed user store once the leaderboard service
	// exposes it; the in-memory repository keeps dev logins working.
	userRepo := fakeuserrepo.NewFakeUserRepo()

	authService, err := auth.NewAuthService(auth.NewProvider(sfClient), userRepo, sessionRepo)
	if err != nil {
		return fmt.Errorf("create auth service: %w", err)
	}

	srv, err := server.New(c, authService)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

func buildSessionRepo(c config.Config) (sessions.Repo, error) {
	switch c.GetSessionBackend() {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     c.GetRedisAddr(),
			Password: c.GetRedisPassword(),
		})
		return sessions.NewRedisRepo(context.Background(), client, c.GetSessionTTL())
	default:
		return sessions.NewInMemoryRepo(c.GetSessionTTL()), nil
	}
}

func configureLogging(c config.Config) {
	if c.GetEnv() == "DEV" {
		zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
