package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"

	"github.com/linemk/ecommerce-api/internal/lib/logger/handlers/slogpretty"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// ServiceName попадает в каждую запись, чтобы логи сервера, мигратора и сидера различались в общем хранилище.
const ServiceName = "ecommerce-api"

// SetupLogger инициализирует логгер для окружения env.
// local: цветной вывод; dev: JSON с уровнем debug и местом вызова; prod и неизвестные значения: JSON, info.
// component — имя бинарника (server, migrator, seeder).
func SetupLogger(env, component string) *slog.Logger {
	return newLogger(os.Stdout, env).With(
		slog.String("service", ServiceName),
		slog.String("component", component),
		slog.String("env", env),
	)
}

func newLogger(w io.Writer, env string) *slog.Logger {
	switch env {
	case EnvLocal:
		return setupPrettySlog(w)
	case EnvDev:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true}))
	default:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}

func setupPrettySlog(w io.Writer) *slog.Logger {
	color.NoColor = false

	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	return slog.New(opts.NewPrettyHandler(w))
}
