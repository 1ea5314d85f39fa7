package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/backofhouse/tally/internal/common"
	"github.com/backofhouse/tally/internal/config"
	"github.com/backofhouse/tally/internal/engine"
	"github.com/backofhouse/tally/internal/model"
	"github.com/backofhouse/tally/internal/service"
	"github.com/backofhouse/tally/internal/storage"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/tally/tally.db"
	}

	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("failed to open database at %s", dbPath), err)
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initEngine initializes storage and an engine over it. The caller owns
// closing the returned storage.
func initEngine(ctx context.Context) (*engine.Engine, service.Storage, error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, nil, err
	}
	return engine.New(store), store, nil
}

// parseSource validates a --source flag value.
func parseSource(value string) (model.RecordSource, error) {
	source := model.RecordSource(value)
	if !source.Valid() {
		return "", fmt.Errorf("invalid source %q (want bank or pos)", value)
	}
	return source, nil
}

// parseSplitSpec parses one --split flag value of the form
// "<category-id>=<percentage>%" or "<category-id>=<minor-units>", with an
// optional ":<label>" suffix.
func parseSplitSpec(value string) (model.SplitSpec, error) {
	var spec model.SplitSpec

	body := value
	if idx := strings.Index(value, ":"); idx >= 0 {
		body = value[:idx]
		spec.Label = value[idx+1:]
	}

	parts := strings.SplitN(body, "=", 2)
	if len(parts) != 2 {
		return spec, fmt.Errorf("invalid split %q (want <category-id>=<amount>)", value)
	}

	categoryID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return spec, fmt.Errorf("invalid split category id %q", parts[0])
	}
	spec.CategoryID = categoryID

	if pct, ok := strings.CutSuffix(parts[1], "%"); ok {
		spec.Percentage = &pct
		return spec, nil
	}

	fixed, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return spec, fmt.Errorf("invalid split amount %q (want a percentage like 70%% or minor units like 1500)", parts[1])
	}
	spec.FixedAmount = &fixed
	return spec, nil
}

// formatAmount renders signed minor units as dollars.
func formatAmount(minorUnits int64) string {
	sign := ""
	if minorUnits < 0 {
		sign = "-"
		minorUnits = -minorUnits
	}
	return fmt.Sprintf("%s$%d.%02d", sign, minorUnits/100, minorUnits%100)
}
