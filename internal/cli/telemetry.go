package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/crocs-muni/scrutiny-viz/internal/engine"
)

// initMetrics sets up an OTel meter provider whose instruments are written
// as JSON to path. A periodic reader exports on shutdown, so the returned
// function must be called once the run is over.
func initMetrics(path string) (*engine.Metrics, func(context.Context) error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("otel: create metrics file: %w", err)
	}

	exporter, err := stdoutmetric.New(
		stdoutmetric.WithWriter(f),
		stdoutmetric.WithPrettyPrint(),
	)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("otel: create exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", "scrutiny"),
		attribute.String("service.version", Version),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	shutdown := func(ctx context.Context) error {
		return errors.Join(mp.Shutdown(ctx), f.Close())
	}

	m, err := engine.NewMetricsWithMeter(mp.Meter("scrutiny"))
	if err != nil {
		_ = shutdown(context.Background())
		return nil, nil, fmt.Errorf("otel: create instruments: %w", err)
	}
	return m, shutdown, nil
}
