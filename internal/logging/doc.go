// Package logging holds the daemon's slog setup: one logger per module
// (bridge, adapter, vdisplay, capture, sink, api, config, systemd), each with
// its own level that can be changed while the daemon runs.
//
// Call Initialize once the configuration is loaded, then take loggers by
// module name:
//
//	logging.Initialize(logging.Config{Level: "info", Format: "text"})
//	logger := logging.GetLogger("bridge").With("device", ref)
//	logger.Info("Session started", "mode", mode)
//
// Records go to every destination that is present:
//
//	stdout   text or JSON, skipped when systemd already captures it
//	journal  structured fields (MODULE, DEVICE, CODE_FILE, ...)
//	buffer   the last 1000 entries with sequence numbers, served by the status API
//
// Under systemd the module and attributes become journal fields:
//
//	journalctl -t usbdisplay MODULE=adapter -f
//	journalctl -t usbdisplay DEVICE=001/004 -p warning
//
// Levels come from the [logging] table of the config file. Module keys sit
// next to the global ones and fall back to the global level when unset:
//
//	[logging]
//	level = "info"
//	format = "text"
//	bridge = "debug"
//	capture = "warn"
//
// SetLevels applies edited levels to existing loggers without touching the
// buffer; the config watcher calls it on every save.
package logging
