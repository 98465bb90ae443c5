package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/NordCoder/Jobportal/internal/obs"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

var queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "postgres_query_duration_seconds",
	Help:    "Query latency by statement verb.",
	Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
}, []string{"op", "result"})

// queryTracer opens a client span per statement and feeds the latency histogram.
type queryTracer struct {
	tr trace.Tracer
}

var _ pgx.QueryTracer = queryTracer{}

type queryStartKey struct{}

type queryStart struct {
	op string
	at time.Time
}

func newQueryTracer() queryTracer {
	return queryTracer{tr: otel.Tracer("postgres")}
}

func (q queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	op := statementVerb(data.SQL)
	ctx, _ = q.tr.Start(ctx, "postgres "+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemPostgreSQL,
			semconv.DBOperation(op),
			semconv.DBStatement(strings.TrimSpace(data.SQL)),
		),
	)
	return context.WithValue(ctx, queryStartKey{}, queryStart{op: op, at: time.Now()})
}

func (q queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span := trace.SpanFromContext(ctx)
	defer span.End()
	obs.FailSpan(span, data.Err)

	st, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	result := "ok"
	if data.Err != nil {
		result = "error"
	}
	queryDuration.WithLabelValues(st.op, result).Observe(time.Since(st.at).Seconds())
}

// statementVerb returns the leading keyword of sql, skipping a CTE prefix so
// "WITH cand AS (...) UPDATE" reports UPDATE.
func statementVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	verb := strings.ToUpper(fields[0])
	if verb != "WITH" {
		return verb
	}
	depth := 0
	for _, f := range fields[1:] {
		depth += strings.Count(f, "(") - strings.Count(f, ")")
		if depth == 0 {
			switch u := strings.ToUpper(strings.Trim(f, "(),;")); u {
			case "SELECT", "INSERT", "UPDATE", "DELETE":
				return u
			}
		}
	}
	return verb
}
