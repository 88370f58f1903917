// Package logging provides structured logging for the message bus.
//
// Logs are JSON lines written through log/slog, either to
// {dir}/magicbus.log or to stderr. Child loggers carry the bus, mailbox and
// message type as persistent attributes so a single delivery can be traced
// across lines.
//
// # Levels
//
// The bus itself logs routine outcomes (subscribe, unsubscribe, dead
// letters) at DEBUG and aborted posts at ERROR. Recoverable mailbox failures
// are logged only when a failure callback built with bus.LogFailed is
// installed.
//
// # Usage
//
//	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
//	if err != nil {
//		return err
//	}
//	defer logger.Close()
//
//	b, err := bus.New(bus.LogReturned(logger), bus.LogFailed(logger), bus.Ignore(),
//		bus.WithLogger(logger))
//
// A [Logger] is safe for concurrent use. Child loggers created with the
// With* methods share the parent's writer.
package logging
