// Package logging builds the log/slog loggers used across apidiag.
//
// Operational logging (storage failures, ignored capture calls, server
// lifecycle) goes through slog. It is distinct from the captured API history
// in package apilog.
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelDebug,
//	    Format: logging.FormatJSON,
//	})
//
// Components accept a *slog.Logger option and fall back to Nop.
package logging
