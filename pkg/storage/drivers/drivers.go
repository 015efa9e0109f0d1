// Package drivers opens a storage.Store by driver name.
package drivers

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/inmemory"
	"github.com/papercomputeco/chatrelay/pkg/storage/jsonfile"
	"github.com/papercomputeco/chatrelay/pkg/storage/redis"
	"github.com/papercomputeco/chatrelay/pkg/storage/sqlite"
)

// Driver names.
const (
	File   = "file"
	SQLite = "sqlite"
	Redis  = "redis"
	Memory = "memory"
)

// Names lists every supported driver.
var Names = []string{File, SQLite, Redis, Memory}

// Spec selects a driver and its target: a directory for file, a database path
// for sqlite, a redis:// URL for redis. Memory ignores the target.
type Spec struct {
	Driver string
	Target string
}

func (s Spec) String() string {
	return s.Driver + ":" + s.Target
}

// ParseSpec parses "driver:target", e.g. "sqlite:./chat.db" or
// "redis:redis://localhost:6379/0".
func ParseSpec(raw string) (Spec, error) {
	driver, target, _ := strings.Cut(raw, ":")
	spec := Spec{Driver: driver, Target: target}
	if !Supported(driver) {
		return Spec{}, fmt.Errorf("unknown storage driver %q (want one of %s)", driver, strings.Join(Names, ", "))
	}
	if driver != Memory && target == "" {
		return Spec{}, fmt.Errorf("storage driver %q needs a target", driver)
	}
	return spec, nil
}

// Supported reports whether name is a known driver.
func Supported(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}

// Open opens the store described by spec.
func Open(ctx context.Context, spec Spec, logger *zap.Logger) (storage.Store, error) {
	switch spec.Driver {
	case File:
		return jsonfile.NewDriver(spec.Target, logger), nil
	case SQLite:
		d, err := sqlite.NewDriver(ctx, spec.Target)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite store: %w", err)
		}
		return d, nil
	case Redis:
		d, err := redis.NewDriver(ctx, spec.Target)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis store: %w", err)
		}
		return d, nil
	case Memory:
		return inmemory.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", spec.Driver)
	}
}
