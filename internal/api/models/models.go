package models

import (
	"github.com/smazurov/usbdisplay/internal/bridge"
	"github.com/smazurov/usbdisplay/internal/events"
	"github.com/smazurov/usbdisplay/internal/metrics"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.21.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Status models
type StatusData struct {
	Bridge  bridge.Status    `json:"bridge" doc:"Frame loop and attachment state"`
	Metrics metrics.Snapshot `json:"metrics" doc:"Counters since process start"`
	Version string           `json:"version" example:"dev" doc:"Application version"`
	Uptime  string           `json:"uptime" example:"1h2m3s" doc:"Time since the API server started"`
}

type StatusResponse struct {
	Body StatusData
}

// Log models
type LogsInput struct {
	Level  string `query:"level" enum:"debug,info,warn,error" doc:"Minimum level to return"`
	Module string `query:"module" example:"bridge" doc:"Only entries from this module"`
	After  uint64 `query:"after" doc:"Only entries with a sequence number above this one"`
	Limit  int    `query:"limit" minimum:"0" maximum:"1000" default:"200" doc:"Most recent entries to return"`
}

type LogsData struct {
	Entries []events.LogEntryEvent `json:"entries" doc:"Buffered log entries, oldest first"`
	Count   int                    `json:"count" example:"42" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}
