package telemetry

import (
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const maxStatementLen = 500

// GORMTracingPlugin returns a GORM plugin that opens one span per statement.
// system is the db.system attribute, e.g. "postgresql" or "sqlite".
func GORMTracingPlugin(system string) gorm.Plugin {
	return &tracingPlugin{tracer: otel.Tracer("gorm"), system: system}
}

type tracingPlugin struct {
	tracer trace.Tracer
	system string
}

func (p *tracingPlugin) Name() string { return "telemetry:tracing" }

func (p *tracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	// every gorm processor gets a span around its own gorm:* callback
	return errors.Join(
		cb.Query().Before("gorm:query").Register("telemetry:start_select", p.start("select")),
		cb.Query().After("gorm:query").Register("telemetry:end_select", p.end),
		cb.Create().Before("gorm:create").Register("telemetry:start_insert", p.start("insert")),
		cb.Create().After("gorm:create").Register("telemetry:end_insert", p.end),
		cb.Update().Before("gorm:update").Register("telemetry:start_update", p.start("update")),
		cb.Update().After("gorm:update").Register("telemetry:end_update", p.end),
		cb.Delete().Before("gorm:delete").Register("telemetry:start_delete", p.start("delete")),
		cb.Delete().After("gorm:delete").Register("telemetry:end_delete", p.end),
		cb.Raw().Before("gorm:raw").Register("telemetry:start_raw", p.start("raw")),
		cb.Raw().After("gorm:raw").Register("telemetry:end_raw", p.end),
	)
}

// start opens a span and carries it on the statement context, where end finds it
func (p *tracingPlugin) start(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		if db.Statement.Context == nil {
			return
		}
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		ctx, _ := p.tracer.Start(db.Statement.Context, "db."+op,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("db.system", p.system),
				attribute.String("db.sql.table", table),
				attribute.String("db.operation", strings.ToUpper(op)),
			),
		)
		db.Statement.Context = ctx
	}
}

func (p *tracingPlugin) end(db *gorm.DB) {
	if db.Statement.Context == nil {
		return
	}
	span := trace.SpanFromContext(db.Statement.Context)
	if !span.IsRecording() {
		return
	}
	defer span.End()

	if sql := db.Statement.SQL.String(); sql != "" {
		if len(sql) > maxStatementLen {
			sql = sql[:maxStatementLen] + "... (truncated)"
		}
		span.SetAttributes(attribute.String("db.statement", sql))
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", db.RowsAffected))

	// a missing row is an answer, not a failure
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}
}
