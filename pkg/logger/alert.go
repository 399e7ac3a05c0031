package logger

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap/zapcore"
)

const alertFieldKey = "send_alert"

// AlertSink receives formatted alert messages. Implementations must not block.
type AlertSink interface {
	Alert(message string)
}

// AlertCore tees entries flagged with send_alert to an AlertSink.
type AlertCore struct {
	core   zapcore.Core
	sink   AlertSink
	fields []zapcore.Field
}

func NewAlertCore(core zapcore.Core, sink AlertSink) *AlertCore {
	return &AlertCore{core: core, sink: sink}
}

func (a *AlertCore) Enabled(lvl zapcore.Level) bool {
	return a.core.Enabled(lvl)
}

func (a *AlertCore) With(fields []zapcore.Field) zapcore.Core {
	return &AlertCore{
		core:   a.core.With(fields),
		sink:   a.sink,
		fields: append(append([]zapcore.Field{}, a.fields...), fields...),
	}
}

func (a *AlertCore) Check(entry zapcore.Entry, checkedEntry *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if a.Enabled(entry.Level) {
		return checkedEntry.AddCore(entry, a)
	}
	return checkedEntry
}

func (a *AlertCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if shouldAlert(fields) {
		a.sink.Alert(formatAlert(entry, append(append([]zapcore.Field{}, a.fields...), fields...)))
	}
	return a.core.Write(entry, stripAlertField(fields))
}

func (a *AlertCore) Sync() error {
	return a.core.Sync()
}

func shouldAlert(fields []zapcore.Field) bool {
	for _, f := range fields {
		if f.Key == alertFieldKey && f.Type == zapcore.BoolType && f.Integer == 1 {
			return true
		}
	}
	return false
}

func stripAlertField(fields []zapcore.Field) []zapcore.Field {
	out := fields[:0:0]
	for _, f := range fields {
		if f.Key != alertFieldKey {
			out = append(out, f)
		}
	}
	return out
}

func formatAlert(entry zapcore.Entry, fields []zapcore.Field) string {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		if f.Key == alertFieldKey {
			continue
		}
		f.AddTo(enc)
	}

	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s\n", entry.Level.CapitalString(), entry.Message)
	for _, k := range keys {
		fmt.Fprintf(&sb, "- %s: %v\n", k, enc.Fields[k])
	}
	sb.WriteString(entry.Time.Format("2006-01-02 15:04:05"))
	return sb.String()
}
