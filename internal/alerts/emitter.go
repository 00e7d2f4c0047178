package alerts

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"billing-app/internal/domain/audit"
)

// Emitter raises operational alerts. It is deliberately infallible from the
// caller's point of view: a broken audit table or a wedged subscriber must
// never turn a successfully processed payment into a webhook failure, which
// would make the payment processor retry a charge that already landed.
//
// Delivery order per alert: structured log first (always survives), then a
// best-effort audit row, then a non-blocking broadcast.
type Emitter struct {
	DB          *gorm.DB
	Log         *zap.Logger
	Broadcaster *Broadcaster
}

func NewEmitter(db *gorm.DB, log *zap.Logger, b *Broadcaster) *Emitter {
	return &Emitter{DB: db, Log: log, Broadcaster: b}
}

// Raise records an alert with the type's default severity.
func (e *Emitter) Raise(alertType audit.AlertType, description string, metadata map[string]string) {
	e.RaiseWithSeverity(alertType, alertType.DefaultSeverity(), description, metadata)
}

// RaiseWithSeverity records an alert. It never returns an error and never
// panics past its own boundary.
func (e *Emitter) RaiseWithSeverity(alertType audit.AlertType, severity audit.Severity, description string, metadata map[string]string) {
	defer func() {
		if r := recover(); r != nil {
			e.Log.Error("alert emitter panicked", zap.Any("panic", r), zap.String("alert_type", string(alertType)))
		}
	}()

	fields := []zap.Field{
		zap.String("alert_type", string(alertType)),
		zap.String("severity", string(severity)),
	}
	for k, v := range metadata {
		fields = append(fields, zap.String(k, v))
	}
	switch severity {
	case audit.SeverityCritical:
		e.Log.Error(description, fields...)
	case audit.SeverityWarning:
		e.Log.Warn(description, fields...)
	default:
		e.Log.Info(description, fields...)
	}

	row := audit.AuditAlert{
		AlertType:   alertType,
		Severity:    severity,
		Category:    alertType.Category(),
		Description: description,
	}
	if v, ok := metadata["entity_type"]; ok {
		row.EntityType = v
	}
	if v, ok := metadata["entity_id"]; ok {
		row.EntityID = v
	}
	if len(metadata) > 0 {
		if raw, err := json.Marshal(metadata); err == nil {
			row.Metadata = string(raw)
		}
	}
	if err := e.DB.Create(&row).Error; err != nil {
		// Swallowed: the log line above is the fallback record.
		e.Log.Error("audit alert row not persisted", zap.Error(err), zap.String("alert_type", string(alertType)))
	}

	if e.Broadcaster != nil {
		e.Broadcaster.Publish(Event{
			Type:        string(alertType),
			Severity:    string(severity),
			Description: description,
			Metadata:    metadata,
		})
	}
}

// Filters narrows ListRecent. Zero values mean "no filter".
type Filters struct {
	Severity audit.Severity
	Type     audit.AlertType
	Since    time.Time
	Limit    int
}

// ListRecent returns persisted alerts, newest first. Limit defaults to 100.
func (e *Emitter) ListRecent(f Filters) ([]audit.AuditAlert, error) {
	q := e.DB.Model(&audit.AuditAlert{}).Order("created_at desc, id desc")
	if f.Severity != "" {
		q = q.Where("severity = ?", f.Severity)
	}
	if f.Type != "" {
		q = q.Where("alert_type = ?", f.Type)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var rows []audit.AuditAlert
	if err := q.Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
