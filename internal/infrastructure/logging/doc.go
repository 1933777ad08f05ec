// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components take a named child logger (broker, transport, compositor,
// render, input, status) so every line carries its origin.
//
// Example Usage:
//
//	logger, err := logging.New(logging.Config{Level: "info"})
//	if err != nil {
//		return err
//	}
//	log := logger.Named("broker")
//	log.Info("compositor registered", logging.PID(412))
//	log.Warn("display driver failed", logging.Connector(1), zap.Error(err))
package logging
