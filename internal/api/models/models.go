// Package models holds the API request and response shapes.
package models

import "fencecast/internal/store"

// HealthData represents the health check payload.
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Health status"`
	Message string `json:"message" example:"API is healthy" doc:"Status detail"`
}

// HealthResponse represents the HTTP response for the health check.
type HealthResponse struct {
	Body HealthData
}

// VersionData represents build version information.
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2026-08-26T10:00:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Target platform"`
}

// VersionResponse represents the HTTP response for version info.
type VersionResponse struct {
	Body VersionData
}

// BindRequest represents the payload for creating or updating a binding.
type BindRequest struct {
	Body struct {
		UID       string `json:"uid,omitempty" example:"cam-front" doc:"Binding identifier; generated when omitted"`
		SourceURL string `json:"source_url" example:"rtsp://10.0.0.5/stream" doc:"Camera source URL"`
	}
}

// BindingData represents one binding in API responses.
type BindingData struct {
	UID           string           `json:"uid" example:"cam-front" doc:"Binding identifier"`
	SourceURL     string           `json:"source_url" example:"rtsp://10.0.0.5/stream" doc:"Camera source URL"`
	Watermarks    store.Watermarks `json:"watermarks" doc:"Ordered watermark map, insertion order preserved"`
	OutputPlain   string           `json:"output_plain" example:"/var/lib/fencecast/hls/cam-front/plain.m3u8" doc:"Plain rendition playlist path"`
	OutputOverlay string           `json:"output_overlay" example:"/var/lib/fencecast/hls/cam-front/overlay.m3u8" doc:"Overlay rendition playlist path"`
	Status        store.Status     `json:"status" example:"started" doc:"Current lifecycle status"`
	Running       bool             `json:"running" example:"true" doc:"Whether a live worker process is attached"`
}

// BindingResponse represents the HTTP response for one binding.
type BindingResponse struct {
	Body BindingData
}

// BindingListData represents the binding collection payload.
type BindingListData struct {
	Bindings []BindingData `json:"bindings" doc:"All bindings"`
	Count    int           `json:"count" example:"2" doc:"Number of bindings"`
}

// BindingListResponse represents the HTTP response for the binding list.
type BindingListResponse struct {
	Body BindingListData
}

// RunningData represents the live worker list payload.
type RunningData struct {
	UIDs  []string `json:"uids" example:"[\"cam-front\"]" doc:"Bindings with a live worker process"`
	Count int      `json:"count" example:"1" doc:"Number of live workers"`
}

// RunningResponse represents the HTTP response for the running list.
type RunningResponse struct {
	Body RunningData
}

// WatermarkData represents a stored watermark.
type WatermarkData struct {
	UID  string `json:"uid" example:"cam-front" doc:"Binding identifier"`
	ID   string `json:"id" example:"logo" doc:"Watermark identifier"`
	Path string `json:"path" example:"/var/lib/fencecast/watermarks/cam-front/logo.png" doc:"Stored image path"`
}

// WatermarkResponse represents the HTTP response after a watermark upload.
type WatermarkResponse struct {
	Body WatermarkData
}

// ClearedData reports how a clear operation went.
type ClearedData struct {
	UID     string `json:"uid" example:"cam-front" doc:"Binding identifier"`
	Cleared bool   `json:"cleared" example:"true" doc:"Whether any watermarks were removed"`
}

// ClearedResponse represents the HTTP response for clearing watermarks.
type ClearedResponse struct {
	Body ClearedData
}

// LogEntryData represents one buffered log line.
type LogEntryData struct {
	Timestamp  string         `json:"timestamp" example:"2026-08-26T10:30:00Z" doc:"Entry timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"supervisor" doc:"Originating module"`
	Message    string         `json:"message" example:"Worker launched" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

// LogsData represents the recent-logs payload.
type LogsData struct {
	Entries []LogEntryData `json:"entries" doc:"Buffered log entries, oldest first"`
	Count   int            `json:"count" example:"128" doc:"Number of entries"`
}

// LogsResponse represents the HTTP response for recent logs.
type LogsResponse struct {
	Body LogsData
}
