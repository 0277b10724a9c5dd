// Package logger builds log/slog loggers for netdispatch binaries and holds
// the attribute constructors shared by every package, so keys such as
// "task_id", "worker" or "priority" are spelled the same everywhere.
//
// New takes functional options for format, level, output and static
// attributes. ContextExtractor callbacks registered with
// WithContextExtractors add attributes taken from the record's context on
// every Handle call.
//
//	log := logger.New(
//	    logger.WithEnvironment("production", "netdispatch"),
//	    logger.WithContextExtractors(dispatch.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "task finished",
//	    logger.TaskID(id),
//	    logger.WorkerIndex(0),
//	    logger.Duration(time.Since(start)),
//	)
//
// Error, TaskID and Category return an empty slog.Attr for zero
// inputs, so callers can pass them unconditionally.
package logger
