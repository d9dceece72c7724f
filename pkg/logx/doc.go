// Package logx configures jobwrk's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog that keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Runtime reconfiguration through Service.Apply (config hot reload)
package logx
