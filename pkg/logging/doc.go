// Package logging provides structured logging configuration for mockidp.
//
// It wraps log/slog so every component logs the same way:
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.ParseLevel(cfg.LogLevel),
//	    Format: logging.ParseFormat(cfg.LogFormat),
//	})
//	keysLog := logging.Component(logger, "keys")
//	keysLog.Info("signing key loaded", "kid", kid)
//
// Components accept a *slog.Logger in their constructor. A nil logger is
// replaced with Nop via OrNop.
//
// When Config.File is set, records are written both to Output and, as JSON
// lines, to File through a MultiHandler.
package logging
