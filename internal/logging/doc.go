// Package logging provides structured logging using uber/zap.
//
// This package offers two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Kernel components log with the field helpers in this package so that
// thread, address-space and service context is named the same way
// everywhere:
//
//	logger := logging.NewDefault()
//	logger.Info("thread started", logging.Tid(tid), logging.ASID(asid))
//	logger.Warn("page fault", logging.VA(va), zap.Error(err))
package logging
