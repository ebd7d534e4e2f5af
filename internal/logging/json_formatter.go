package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultTimestampFormat = time.RFC3339

	// Reserved keys of every JSON log line.
	FieldKeyMsg   = "msg"
	FieldKeyLevel = "level"
	FieldKeyTime  = "time"
	FieldKeyFunc  = "func"
	FieldKeyFile  = "file"
	FieldModule   = "module"

	// ModuleName is the value of the module key.
	ModuleName = "taskboard"
)

// JSONFormatter renders one JSON object per entry. Entry fields that clash
// with the reserved keys are kept under a "fields." prefix.
type JSONFormatter struct {
	// TimestampFormat defaults to RFC 3339.
	TimestampFormat string

	// PrettyPrint will indent all json logs
	PrettyPrint bool
}

// Format renders entry as a single JSON line.
func (f *JSONFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	data := make(logrus.Fields, len(entry.Data)+6)
	for k, v := range entry.Data {
		switch v := v.(type) {
		case error:
			// encoding/json drops error values
			data[k] = v.Error()
		default:
			data[k] = v
		}
	}
	prefixFieldClashes(data, entry.HasCaller())

	timestampFormat := f.TimestampFormat
	if timestampFormat == "" {
		timestampFormat = defaultTimestampFormat
	}
	data[FieldKeyTime] = entry.Time.Format(timestampFormat)
	data[FieldKeyMsg] = entry.Message
	data[FieldKeyLevel] = entry.Level.String()
	data[FieldModule] = ModuleName
	if entry.HasCaller() {
		data[FieldKeyFunc] = entry.Caller.Function
		data[FieldKeyFile] = fmt.Sprintf("%s:%d", entry.Caller.File, entry.Caller.Line)
	}

	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}
	encoder := json.NewEncoder(b)
	encoder.SetEscapeHTML(false)
	if f.PrettyPrint {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(data); err != nil {
		return nil, fmt.Errorf("failed to marshal fields to JSON, %v", err)
	}
	return b.Bytes(), nil
}

func prefixFieldClashes(data logrus.Fields, reportCaller bool) {
	keys := []string{FieldKeyTime, FieldKeyMsg, FieldKeyLevel, FieldModule}
	if reportCaller {
		keys = append(keys, FieldKeyFunc, FieldKeyFile)
	}
	for _, k := range keys {
		if v, ok := data[k]; ok {
			data["fields."+k] = v
			delete(data, k)
		}
	}
}
