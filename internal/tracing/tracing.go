// Package tracing installs the OpenTelemetry tracer provider used to time
// batch stages.
package tracing

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kairuizhang035-crypto/yinguo/internal/config"
)

// InstrumentationName names the tracer used by batch code.
const InstrumentationName = "github.com/kairuizhang035-crypto/yinguo"

// Tracer returns the tracer for batch stages. Without Init it is a no-op.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// Init installs a tracer provider exporting spans to cfg.File, or stdout when
// no file is set. When tracing is disabled it returns a no-op shutdown.
func Init(ctx context.Context, cfg config.TraceConfig) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		return noop, nil
	}

	var w io.Writer = os.Stdout
	var file *os.File
	if path := strings.TrimSpace(cfg.File); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return noop, eris.Wrapf(err, "tracing: open %s", path)
		}
		w, file = f, f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		if file != nil {
			_ = file.Close()
		}
		return noop, eris.Wrap(err, "tracing: create exporter")
	}

	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "yinguo"
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
	)
	otel.SetTracerProvider(tp)
	zap.L().Info("tracing: initialized", zap.String("service", name), zap.String("file", cfg.File))

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if file != nil {
			if cerr := file.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		if err != nil {
			return eris.Wrap(err, "tracing: shutdown")
		}
		return nil
	}, nil
}
