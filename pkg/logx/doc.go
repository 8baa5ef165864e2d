// Package logx configures rotaplan's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Runtime-reconfigurable sinks (Service.Apply)
package logx
