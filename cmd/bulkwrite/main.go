// Command bulkwrite generates a chunk file with synthetic measurement data.
// It exercises the whole write path: config loading, chunk group writers,
// page sealing, flush tracing and the file writer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/INLOpen/nexustsf/chunk"
	"github.com/INLOpen/nexustsf/config"
	"github.com/INLOpen/nexustsf/core"
	"github.com/INLOpen/nexustsf/schema"
	"github.com/INLOpen/nexustsf/tsio"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// initTracerProvider creates and configures an OpenTelemetry TracerProvider.
// When tracing is disabled it returns a provider with no exporter, so span
// creation stays cheap and nothing leaves the process.
func initTracerProvider(cfg config.TracingConfig, logger *slog.Logger) (*sdktrace.TracerProvider, func(), error) {
	if !cfg.Enabled {
		logger.Info("Distributed tracing is disabled.")
		return sdktrace.NewTracerProvider(), func() {}, nil
	}

	logger.Info("Initializing distributed tracing...", "protocol", cfg.Protocol, "endpoint", cfg.Endpoint)

	ctx := context.Background()
	var exporter sdktrace.SpanExporter
	var err error
	switch strings.ToLower(cfg.Protocol) {
	case "http":
		exporter, err = otlptrace.New(ctx, otlptracehttp.NewClient(otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure()))
	case "grpc":
		exporter, err = otlptrace.New(ctx, otlptracegrpc.NewClient(otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure()))
	default:
		return nil, nil, fmt.Errorf("unsupported tracing protocol: %q", cfg.Protocol)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String("nexustsf-bulkwrite")))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down tracer provider", "error", err)
		}
	}
	return tp, cleanup, nil
}

func main() {
	var (
		configPath string
		outPath    string
		deviceID   string
		rows       int
		seriesNum  int
		aligned    bool
	)
	flag.StringVar(&configPath, "config", "config.yaml", "path to YAML config")
	flag.StringVar(&outPath, "out", "", "output chunk file path")
	flag.StringVar(&deviceID, "device", "root.sg.d1", "device id of the chunk group")
	flag.IntVar(&rows, "rows", 10000, "number of rows to generate")
	flag.IntVar(&seriesNum, "series", 4, "number of value series")
	flag.BoolVar(&aligned, "aligned", false, "write an aligned chunk group")
	flag.Parse()
	if outPath == "" {
		log.Fatal("provide -out")
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("LoadConfig failed: %v", err)
	}
	logger := cfg.NewLogger()
	opts, err := cfg.WriteOptions(logger)
	if err != nil {
		log.Fatalf("invalid writer config: %v", err)
	}

	tp, tracerCleanup, err := initTracerProvider(cfg.Tracing, logger)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer tracerCleanup()

	schemas := make([]schema.MeasurementSchema, seriesNum)
	for i := range schemas {
		schemas[i] = schema.MeasurementSchema{
			MeasurementID: fmt.Sprintf("s%d", i),
			Type:          core.TypeDouble,
			Encoding:      core.EncodingGorilla,
			Compression:   core.CompressionSnappy,
		}
	}

	var group *chunk.ChunkGroupWriter
	if aligned {
		group = chunk.NewAlignedChunkGroupWriter(deviceID, opts)
	} else {
		group = chunk.NewChunkGroupWriter(deviceID, opts)
	}
	if err := group.TryToAddSeriesWriters(schemas); err != nil {
		log.Fatalf("failed to install series writers: %v", err)
	}

	tablet := schema.NewTablet(deviceID, schemas, rows)
	for r := 0; r < rows; r++ {
		tablet.Timestamps[r] = int64(r) * 1000
		for c := range schemas {
			v := math.Sin(float64(r)/100.0) * float64(c+1)
			if err := tablet.Columns[c].SetValue(r, core.DoubleValue(v)); err != nil {
				log.Fatalf("failed to fill tablet: %v", err)
			}
		}
	}
	written, err := group.WriteTablet(tablet)
	if err != nil {
		log.Fatalf("failed to write tablet: %v", err)
	}
	logger.Info("ingested rows", "rows", written, "mem_high_water", group.UpdateMaxGroupMemSize())

	wopts := tsio.WriterOptionsFrom(opts)
	wopts.Tracer = tp.Tracer("bulkwrite")
	fw, err := tsio.NewWriter(outPath, wopts)
	if err != nil {
		log.Fatalf("failed to create file writer: %v", err)
	}
	bytesWritten, err := group.FlushToFileWriter(fw)
	if err != nil {
		fw.Abort()
		log.Fatalf("failed to flush chunk group: %v", err)
	}
	if err := fw.Close(); err != nil {
		log.Fatalf("failed to close chunk file: %v", err)
	}
	logger.Info("wrote chunk file", "path", fw.FilePath(), "group_bytes", bytesWritten)
}
