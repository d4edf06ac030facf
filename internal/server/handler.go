package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"dirzip/internal/dirzip"
	zfs "dirzip/internal/fs"
)

// Archiver runs archive transfers.
type Archiver interface {
	Transfer(ctx context.Context, req dirzip.Request, dst dirzip.Destination) (*dirzip.Result, error)
}

// FolderResolver maps a requested folder name to a directory under base.
type FolderResolver interface {
	ResolveFolder(base, name string) (string, error)
}

// Handler serves folder downloads.
type Handler struct {
	archives Archiver
	folders  FolderResolver
	base     string
	logger   *slog.Logger

	// calculateLength is used when a request does not say.
	calculateLength bool
}

// NewHandler creates a Handler serving the subdirectories of base.
func NewHandler(archives Archiver, folders FolderResolver, base string, calculateLength bool, logger *slog.Logger) *Handler {
	return &Handler{
		archives:        archives,
		folders:         folders,
		base:            base,
		logger:          logger,
		calculateLength: calculateLength,
	}
}

// Routes returns the handler's request multiplexer.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /download/{folderName}", h.download)
	mux.HandleFunc("GET /healthz", h.healthz)
	return mux
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("folderName")

	calculate, err := h.parseCalculateLength(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	root, err := h.folders.ResolveFolder(h.base, name)
	if err != nil {
		if !errors.Is(err, zfs.ErrFolderNotFound) {
			h.logger.Error("resolving folder", "folder", name, "error", err)
		}
		writeProblem(w, http.StatusNotFound, "Not Found", fmt.Sprintf("Folder '%s' not found or access denied.", name))
		return
	}

	dst := newResponseDestination(w, name)
	res, err := h.archives.Transfer(r.Context(), dirzip.Request{
		Root:            root,
		Name:            name,
		Mode:            "http",
		CalculateLength: calculate,
	}, dst)
	if err == nil {
		return
	}

	if dst.started {
		// The status line is gone; a truncated body must not look complete.
		h.logger.Debug("aborting response", "transfer", res.ID, "folder", name)
		panic(http.ErrAbortHandler)
	}

	switch {
	case errors.Is(err, dirzip.ErrTooSlowToSize):
		writeProblem(w, http.StatusRequestEntityTooLarge, "Processing Error",
			"The folder is too large to process in a reasonable time")
	case errors.Is(err, dirzip.ErrCancelled) && r.Context().Err() != nil:
		// Client went away; nobody to answer.
	default:
		writeProblem(w, http.StatusInternalServerError, "Processing Error",
			"An error occurred while creating the archive.")
	}
}

func (h *Handler) parseCalculateLength(r *http.Request) (bool, error) {
	raw := r.URL.Query().Get("calculateLength")
	if raw == "" {
		return h.calculateLength, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("calculateLength must be true or false, got %q", raw)
	}
	return v, nil
}
