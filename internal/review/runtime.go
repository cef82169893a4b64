package review

import (
	"time"

	"github.com/google/uuid"
)

// Logger receives structured store events. Args alternate keys and values
// the way log/slog expects.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger drops everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// Clock supplies the timestamps stamped on records.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock in UTC at microsecond precision, the
// finest resolution PostgreSQL keeps.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

// IDGenerator mints record ids.
type IDGenerator interface {
	New() string
}

// UUIDGenerator mints random version 4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.NewString() }

var (
	_ Logger      = NopLogger{}
	_ Clock       = RealClock{}
	_ IDGenerator = UUIDGenerator{}
)
