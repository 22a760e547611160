// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"github.com/ManuGH/anieflix/internal/domain/media"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on ingest and playback spans.
const (
	MediaTypeKey      = "media.type"
	MediaKeyKey       = "media.key"
	MediaFolderKey    = "media.folder"
	MediaPlaylistKey  = "media.playlist"
	ErrorKindKey      = "error.kind"
	ErrorReasonKey    = "error.reason"
	UploadFilenameKey = "upload.filename"
)

// MediaAttributes describes the asset a span operates on.
func MediaAttributes(k media.Key) []attribute.KeyValue {
	if k.IsZero() {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(MediaTypeKey, string(k.Type)),
		attribute.String(MediaKeyKey, k.String()),
	}
}

// RecordError marks span as failed and tags it with the media error kind and reason.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if kind := media.KindOf(err); kind != "" {
		span.SetAttributes(attribute.String(ErrorKindKey, string(kind)))
	}
	if r := media.ReasonOf(err); r != "" {
		span.SetAttributes(attribute.String(ErrorReasonKey, string(r)))
	}
}
