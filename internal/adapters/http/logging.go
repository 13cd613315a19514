package http

import "log/slog"

const serviceName = "M47-Order-Settlement-Service"

func httpLogger() *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "http",
		"layer", "adapter",
	)
}
