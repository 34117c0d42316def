// Command discount-export reads the discount-code document from MongoDB and
// publishes it as the base64 blob the storefront loads from
// STOREFRONT_DISCOUNT_CODES.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"

	mongostore "github.com/starlighttrader/storefront/internal/storage/mongo"
)

const envKey = "STOREFRONT_DISCOUNT_CODES"

func main() {
	var (
		mongoURI string
		database string
		envFile  string
		timeout  time.Duration
	)

	flag.StringVar(&mongoURI, "mongo-uri", "", "MongoDB connection URI (or MONGODB_URI env)")
	flag.StringVar(&database, "db", mongostore.DefaultDatabase, "database holding the discountCodes collection")
	flag.StringVar(&envFile, "env-file", "", "env file to update in place; prints the assignment when empty")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "connect timeout")
	flag.Parse()

	if mongoURI == "" {
		mongoURI = os.Getenv("MONGODB_URI")
	}
	if mongoURI == "" {
		slog.Error("mongo URI is required: set --mongo-uri or MONGODB_URI")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, mongoURI, database, envFile, timeout); err != nil {
		slog.Error("discount export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("discount export completed successfully")
}

func run(ctx context.Context, mongoURI, database, envFile string, timeout time.Duration) error {
	slog.Info("connecting to mongo", slog.String("database", database))

	client, err := mongostore.Connect(ctx, mongoURI, timeout)
	if err != nil {
		return errors.Wrap(err, "connect to mongo")
	}
	defer func() {
		if err := client.Disconnect(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("disconnect from mongo", slog.String("error", err.Error()))
		}
	}()

	table, err := mongostore.NewDiscountSource(client, database).Load(ctx)
	if err != nil {
		return errors.Wrap(err, "load discount codes")
	}
	slog.Info("discount codes loaded", slog.Int("products", len(table)))

	blob, err := table.Encode()
	if err != nil {
		return errors.Wrap(err, "encode discount codes")
	}

	if envFile == "" {
		fmt.Printf("%s=%q\n", envKey, blob)
		return nil
	}

	content, err := os.ReadFile(envFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "read %s", envFile)
	}
	if err := os.WriteFile(envFile, []byte(upsertEnv(string(content), envKey, blob)), 0o600); err != nil {
		return errors.Wrapf(err, "write %s", envFile)
	}
	slog.Info("env file updated", slog.String("path", envFile), slog.String("key", envKey))
	return nil
}

// upsertEnv drops every existing assignment of key from content and appends
// a quoted one.
func upsertEnv(content, key, value string) string {
	var lines []string
	if content != "" {
		for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
			if strings.HasPrefix(line, key+"=") {
				continue
			}
			lines = append(lines, line)
		}
	}
	lines = append(lines, fmt.Sprintf("%s=%q", key, value))
	return strings.Join(lines, "\n") + "\n"
}
