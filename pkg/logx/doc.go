// Package logx provides the project's logging facade.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - a stable call-site API (Info/Warn/Error + typed Fields),
//   - hot-swappable sinks (console / JSON file) via Service.Apply(),
//   - cheap no-op loggers for tests (logx.Nop()).
//
// Components receive a Logger tagged with a "comp" field from the app
// wiring; they never construct their own sinks.
package logx
