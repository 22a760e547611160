// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/ManuGH/anieflix/internal/domain/media"
	"github.com/ManuGH/anieflix/internal/images"
	"github.com/ManuGH/anieflix/internal/ingest"
	"github.com/ManuGH/anieflix/internal/log"
	"github.com/ManuGH/anieflix/internal/metrics"
	"github.com/ManuGH/anieflix/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// multipartMemory is the in-memory part of a parsed form; larger files
// spill to temporary files that removeForm deletes.
const multipartMemory = 32 << 20

func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (*multipart.Form, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, r, err)
			return nil, false
		}
		writeBadRequest(w, r, "invalid multipart form")
		return nil, false
	}
	return r.MultipartForm, true
}

func removeForm(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

func formValue(form *multipart.Form, name string) string {
	if v := form.Value[name]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func formFile(form *multipart.Form, name string) *multipart.FileHeader {
	if fhs := form.File[name]; len(fhs) > 0 && fhs[0].Filename != "" {
		return fhs[0]
	}
	return nil
}

func (s *Server) saveImage(ctx context.Context, kind images.Kind, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", media.E("api.save_image", media.KindStorage, err)
	}
	defer func() { _ = f.Close() }()
	return s.images.Save(ctx, kind, fh.Filename, f)
}

// removeImages deletes images saved for a request that did not complete.
func (s *Server) removeImages(ctx context.Context, saved map[images.Kind]string) {
	for kind, name := range saved {
		if err := s.images.Remove(kind, name); err != nil {
			logger := log.WithComponentFromContext(ctx, "api")
			logger.Warn().Err(err).
				Str(log.FieldPath, string(kind)+"/"+name).
				Msg("failed to remove image of an aborted upload")
		}
	}
}

// ingestUpload runs the pipeline for an uploaded video inside an ingest span.
// A returned publication holds the folder until recordStoredPath settles it.
func (s *Server) ingestUpload(ctx context.Context, key media.Key, displayName string, fh *multipart.FileHeader) (*ingest.Publication, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, media.E("api.ingest", media.KindStorage, err)
	}
	defer func() { _ = f.Close() }()

	ctx, span := telemetry.Tracer("anieflix/api").Start(ctx, "ingest",
		trace.WithAttributes(telemetry.MediaAttributes(key)...),
		trace.WithAttributes(attribute.String(telemetry.UploadFilenameKey, fh.Filename)),
	)
	defer span.End()

	pub, err := s.ingest.Ingest(ctx, ingest.Request{
		Key:         key,
		Upload:      f,
		Filename:    fh.Filename,
		DisplayName: displayName,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String(telemetry.MediaFolderKey, pub.Folder),
		attribute.String(telemetry.MediaPlaylistKey, pub.RelativePath),
	)
	return pub, nil
}

// recordStoredPath makes the published asset reachable and settles the
// publication. When the catalog write fails the publication is aborted, which
// puts back the generation the catalog still points at.
func (s *Server) recordStoredPath(ctx context.Context, key media.Key, pub *ingest.Publication) error {
	logger := log.WithComponentFromContext(ctx, "api").With().
		Str(log.FieldMediaKey, key.String()).
		Str(log.FieldFolder, pub.Folder).
		Logger()

	err := s.catalog.WriteStoredPath(ctx, key, pub.RelativePath)
	if err == nil {
		if cerr := pub.Commit(); cerr != nil {
			logger.Warn().Err(cerr).Msg("publication commit failed")
		}
		return nil
	}

	result := "ok"
	if aerr := pub.Abort(); aerr != nil {
		result = "failed"
		logger.Error().Err(aerr).
			Str(log.FieldEvent, "catalog.compensation_failed").
			Msg("could not undo publication after catalog write failure")
	} else {
		logger.Warn().Err(err).
			Str(log.FieldEvent, "catalog.compensated").
			Bool("restored_previous", pub.Superseded()).
			Msg("undid publication after catalog write failure")
	}
	metrics.IncCatalogCompensation(result)

	if media.KindOf(err) != media.KindCatalogWriteFailed {
		err = media.E("api.record_stored_path", media.KindCatalogWriteFailed, err)
	}
	return err
}
