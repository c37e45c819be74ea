// Package otelcol ships spans to an OTLP collector. Tracing is opt-in via
// OTEL.ENABLE; when disabled the global no-op provider stays in place and
// the gorm instrumentation produces nothing.
package otelcol

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"tradepulse/pkg/config"
)

var Module = fx.Module("otelcol", fx.Invoke(Setup))

func Setup(lc fx.Lifecycle, cfg *config.Config) {
	if !cfg.Otel.Enable {
		return
	}

	var provider *sdktrace.TracerProvider

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			exporter, err := otlptrace.New(initCtx, otlptracegrpc.NewClient(
				otlptracegrpc.WithEndpoint(cfg.Otel.Addr),
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithCompressor("gzip"),
			))
			if err != nil {
				return err
			}

			provider = sdktrace.NewTracerProvider(
				sdktrace.WithResource(resource.Default()),
				sdktrace.WithBatcher(exporter),
			)
			otel.SetTracerProvider(provider)

			zap.L().Info("otel tracing enabled", zap.String("addr", cfg.Otel.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if provider == nil {
				return nil
			}
			return provider.Shutdown(ctx)
		},
	})
}
