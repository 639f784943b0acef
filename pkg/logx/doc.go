// Package logx configures toastd's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - console output readable (short timestamp + short caller) or JSON
//   - file output JSON-structured
//   - outputs and level swappable at runtime via Service.Apply
package logx
