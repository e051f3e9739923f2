// Command userplan меняет тарифный план пользователя в PostgreSQL и рассылает
// событие смены плана репликам через Redis.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/RonMizrahi/access-control/internal/config"
	"github.com/RonMizrahi/access-control/internal/events"
	"github.com/RonMizrahi/access-control/internal/models"
	planservices "github.com/RonMizrahi/access-control/internal/services/plan"
	"github.com/RonMizrahi/access-control/internal/storage/postgresql"
)

const runTimeout = 10 * time.Second

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run выполняет команду. Все ресурсы освобождаются до возврата.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("userplan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	usernameFlag := fs.String("username", "", "user to update")
	planFlag := fs.String("plan", "", "plan to assign (FREE, BASIC, PROFESSIONAL)")
	verboseFlag := fs.Bool("v", false, "log progress to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	username := strings.TrimSpace(*usernameFlag)
	if username == "" {
		return errors.New("-username is required")
	}
	plan, err := models.ParsePlan(*planFlag)
	if err != nil {
		return err
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		return errors.New("CONFIG_PATH is not set")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("cannot read config: %w", err)
	}
	if cfg.StorageConnectionString == "" {
		return errors.New("storage_connection_string is required")
	}

	out := io.Discard
	if *verboseFlag {
		out = stderr
	}
	logger := slog.New(slog.NewTextHandler(out, nil)).With(slog.String("cmd", "userplan"))

	db, err := postgresql.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}
	defer db.Close()

	var opts []planservices.Option
	if cfg.RedisConnection.Address != "" {
		rdb, err := events.NewRedisClient(ctx, cfg.RedisConnection)
		if err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		defer rdb.Close()
		opts = append(opts, planservices.WithPublisher(
			events.NewPlanBus(logger, rdb, cfg.RedisConnection.PlanChannel)))
	} else {
		fmt.Fprintln(stderr, "warning: redis is not configured, running replicas keep the old limit until their buckets are evicted")
	}

	if err := planservices.New(logger, db, opts...).ChangePlan(ctx, username, plan); err != nil {
		return fmt.Errorf("failed to update user plan: %w", err)
	}

	fmt.Fprintf(stdout, "User %s updated to plan %s\n", username, plan)
	return nil
}
