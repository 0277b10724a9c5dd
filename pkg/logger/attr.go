package logger

import (
	"fmt"
	"log/slog"
)

// Error records err under the key "error".
// A nil err yields an empty Attr, which handlers drop.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component records the subsystem name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// TaskID records the task identifier under the key "task_id".
// A nil or empty id yields an empty Attr.
func TaskID(id any) slog.Attr {
	if id == nil || id == "" {
		return slog.Attr{}
	}
	return slog.Any("task_id", id)
}

// TaskType records the dynamic Go type of a task under the key "task_type".
func TaskType(task any) slog.Attr {
	if task == nil {
		return slog.Attr{}
	}
	return slog.String("task_type", fmt.Sprintf("%T", task))
}

// Priority records a priority name under the key "priority".
func Priority(p string) slog.Attr {
	return slog.String("priority", p)
}

// Category records an affinity category under the key "category".
// Tasks without a category produce an empty Attr.
func Category(c string) slog.Attr {
	if c == "" {
		return slog.Attr{}
	}
	return slog.String("category", c)
}

// WorkerIndex records the worker slot under the key "worker".
func WorkerIndex(i int) slog.Attr {
	return slog.Int("worker", i)
}

func Phase(p string) slog.Attr {
	return slog.String("phase", p)
}

func Outcome(o string) slog.Attr {
	return slog.String("outcome", o)
}

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// URL records a request target under the key "url".
func URL(u string) slog.Attr {
	return slog.String("url", u)
}

// StatusCode records an HTTP status under the key "status".
func StatusCode(code int) slog.Attr {
	return slog.Int("status", code)
}
