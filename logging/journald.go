package logging

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/ssgreg/journald"
	"go.uber.org/zap/zapcore"
)

var journaldPriorities = map[zapcore.Level]journald.Priority{
	zapcore.DebugLevel:  journald.PriorityDebug,
	zapcore.InfoLevel:   journald.PriorityInfo,
	zapcore.WarnLevel:   journald.PriorityWarning,
	zapcore.ErrorLevel:  journald.PriorityErr,
	zapcore.FatalLevel:  journald.PriorityCrit,
	zapcore.PanicLevel:  journald.PriorityCrit,
	zapcore.DPanicLevel: journald.PriorityCrit,
}

// journaldVisibleFields are appended to the message since journalctl hides journal fields by default.
var journaldVisibleFields = []string{"error", "kill_id"}

// NewJournaldCore returns a zapcore.Core that sends log entries to systemd-journald.
// Structured context is sent as journal fields prefixed with the identifier.
func NewJournaldCore(identifier string, enab zapcore.LevelEnabler) zapcore.Core {
	return &journaldCore{
		LevelEnabler: enab,
		identifier:   identifier,
	}
}

type journaldCore struct {
	zapcore.LevelEnabler
	context    []zapcore.Field
	identifier string
}

func (c *journaldCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

func (c *journaldCore) Sync() error {
	return nil
}

func (c *journaldCore) With(fields []zapcore.Field) zapcore.Core {
	cc := *c
	cc.context = append(cc.context[:len(cc.context):len(cc.context)], fields...)

	return &cc
}

func (c *journaldCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	pri, ok := journaldPriorities[ent.Level]
	if !ok {
		return errors.Errorf("unknown log level %q", ent.Level)
	}

	all := append(fields[:len(fields):len(fields)], c.context...)

	enc := zapcore.NewMapObjectEncoder()
	for _, field := range all {
		field.AddTo(enc)
	}

	// Keys are encoded after AddTo since a single field may produce several entries.
	journalFields := make(map[string]interface{}, len(enc.Fields)+1)
	for k, v := range enc.Fields {
		journalFields[journaldFieldKey(c.identifier+"_"+k)] = v
	}
	journalFields["SYSLOG_IDENTIFIER"] = c.identifier

	message := ent.Message + visibleFieldsMsg(journaldVisibleFields, all)
	if ent.LoggerName != c.identifier {
		message = ent.LoggerName + ": " + message
	}

	return journald.Send(message, pri, journalFields)
}

// journaldFieldKey turns key into a valid journal field name.
// journald silently drops fields whose name is not [A-Z][A-Z0-9_]{0,63}.
func journaldFieldKey(key string) string {
	if key == "" {
		return "EMPTY_KEY"
	}

	var b strings.Builder
	for _, r := range strings.ToUpper(key) {
		if ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	key = b.String()
	if key[0] < 'A' || key[0] > 'Z' {
		key = "ESC_" + key
	}

	if len(key) > 64 {
		key = key[:64]
	}

	return key
}

// visibleFieldsMsg renders the fields named in visible as a tab-prefixed suffix for the log message.
// It returns an empty string if none of them are present.
func visibleFieldsMsg(visible []string, fields []zapcore.Field) string {
	enc := zapcore.NewMapObjectEncoder()
	for _, field := range fields {
		if slices.Contains(visible, field.Key) {
			field.AddTo(enc)
		}
	}

	var rendered []string
	for _, k := range visible {
		v, ok := enc.Fields[k]
		if !ok {
			continue
		}

		switch v.(type) {
		case string, []byte, error:
			rendered = append(rendered, fmt.Sprintf("%s=%q", k, v))
		default:
			rendered = append(rendered, fmt.Sprintf(`%s="%v"`, k, v))
		}
	}

	if len(rendered) == 0 {
		return ""
	}

	return "\t" + strings.Join(rendered, ", ")
}
