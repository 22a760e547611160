// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldMediaKey  = "media_key"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPID       = "pid"
	FieldExitCode  = "exit_code"

	// Path fields
	FieldPath         = "path"
	FieldFolder       = "folder"
	FieldPlaylistPath = "playlist_path"
	FieldScratchPath  = "scratch_path"

	// Outcome fields
	FieldKind   = "kind"
	FieldReason = "reason"
)
