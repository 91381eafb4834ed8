package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared structured logger used across the client.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// LogEvent emits a structured JSON log line.
func LogEvent(entry map[string]any) {
	if _, ok := entry["ts"]; !ok {
		entry["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}

// Warn logs a warning with optional key-value fields.
func Warn(msg string, fields map[string]any) {
	logWith("warn", msg, fields)
}

// Error logs an error with optional key-value fields.
func Error(msg string, err error, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	logWith("error", msg, fields)
}

func logWith(level, msg string, fields map[string]any) {
	entry := map[string]any{"level": level, "msg": msg}
	for k, v := range fields {
		entry[k] = v
	}
	LogEvent(entry)
}
