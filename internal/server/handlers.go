package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"

	"github.com/audiodrop/audiodrop/internal/auth"
	"github.com/audiodrop/audiodrop/internal/middleware"
	"github.com/audiodrop/audiodrop/internal/share"
	"github.com/audiodrop/audiodrop/internal/storage"
)

// APIResponse is the envelope every JSON endpoint answers with.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: message})
	logrus.WithField("error", message).WithField("status", statusCode).Warn("API error")
}

// writeOpError maps domain errors onto HTTP statuses. PathEscape is a
// client fault, expired links are distinguishable from unknown ones.
func (s *Server) writeOpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		s.writeError(w, "insufficient privilege", http.StatusForbidden)
	case errors.Is(err, storage.ErrPathEscape):
		s.writeError(w, "path escapes storage root", http.StatusBadRequest)
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, "item not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrTooLarge):
		s.writeError(w, "upload exceeds size limit", http.StatusRequestEntityTooLarge)
	case errors.Is(err, share.ErrShareNotFound):
		s.writeError(w, "link unavailable", http.StatusNotFound)
	case errors.Is(err, share.ErrShareExpired):
		s.writeError(w, "link expired", http.StatusGone)
	default:
		s.writeError(w, "internal error", http.StatusInternalServerError)
		logrus.WithError(err).Error("Unhandled operation error")
	}
}

// Auth

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	token, priv, err := s.authManager.Login(req.Password)
	if err != nil {
		s.metrics.RecordLogin("failed")
		s.writeError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	s.metrics.RecordLogin(priv.String())
	s.writeJSON(w, map[string]string{
		"token": token,
		"role":  priv.String(),
	})
}

// Browsing

func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	priv := middleware.PrivilegeFrom(r.Context())
	if !priv.CanView() {
		s.writeError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	relPath := r.URL.Query().Get("path")
	files, folders, err := s.filesystem.List(relPath)
	if err != nil {
		s.writeOpError(w, err)
		return
	}

	links, err := s.shareService.ListLinks(r.Context(), priv)
	if err != nil {
		s.writeOpError(w, err)
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"path":    relPath,
		"files":   files,
		"folders": folders,
		"shares":  links,
		"editor":  priv.CanEdit(),
	})
}

// Mutations

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	priv := middleware.PrivilegeFrom(r.Context())

	var req struct {
		Path string `json:"path"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	created, err := s.filesystem.CreateFolder(priv, req.Path, req.Name)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	s.writeJSON(w, map[string]bool{"created": created})
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	priv := middleware.PrivilegeFrom(r.Context())

	var req struct {
		Path string `json:"path"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Skipped and missing outcomes still answer 200; the status field
	// is the only signal.
	status, err := s.filesystem.DeleteItem(priv, req.Path, req.Name)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	s.writeJSON(w, map[string]string{"status": string(status)})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	priv := middleware.PrivilegeFrom(r.Context())
	if !priv.CanEdit() {
		s.writeError(w, "insufficient privilege", http.StatusForbidden)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.Storage.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, "upload too large or malformed", http.StatusRequestEntityTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	targetDir := r.URL.Query().Get("path")
	result, err := s.filesystem.Upload(priv, targetDir, header.Filename, file)
	if err != nil {
		s.metrics.RecordUpload("failed")
		s.writeOpError(w, err)
		return
	}

	s.metrics.RecordUpload(string(result.Status))
	s.writeJSON(w, result)
}

// Share links

func (s *Server) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	priv := middleware.PrivilegeFrom(r.Context())

	var req struct {
		Path     string `json:"path"`
		LinkName string `json:"linkName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	record, shareURL, err := s.shareService.Create(r.Context(), priv, req.Path, req.LinkName)
	if err != nil {
		s.metrics.RecordShareOp("create", "failed")
		s.writeOpError(w, err)
		return
	}

	s.metrics.RecordShareOp("create", "ok")
	s.writeJSON(w, map[string]interface{}{
		"token":     record.Token,
		"linkName":  record.LinkName,
		"url":       shareURL,
		"expiresAt": record.ExpiresAt,
	})
}

func (s *Server) handleListShares(w http.ResponseWriter, r *http.Request) {
	priv := middleware.PrivilegeFrom(r.Context())
	if !priv.CanView() {
		s.writeError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	links, err := s.shareService.ListLinks(r.Context(), priv)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	s.writeJSON(w, links)
}

func (s *Server) handleDeleteShare(w http.ResponseWriter, r *http.Request) {
	priv := middleware.PrivilegeFrom(r.Context())
	token := mux.Vars(r)["token"]

	if err := s.shareService.DeleteLink(r.Context(), priv, token); err != nil {
		s.writeOpError(w, err)
		return
	}
	s.metrics.RecordShareOp("delete", "ok")
	s.writeJSON(w, map[string]string{"status": "deleted"})
}

func (s *Server) handleResolveShare(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	view, err := s.shareService.Resolve(r.Context(), token)
	if err != nil {
		s.metrics.RecordShareOp("resolve", resolveOutcome(err))
		s.writeOpError(w, err)
		return
	}

	s.metrics.RecordShareOp("resolve", "ok")
	s.writeJSON(w, view)
}

func (s *Server) handleShareQR(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	// The QR only embeds a URL, but resolving first keeps dead tokens
	// from producing scannable codes.
	if _, err := s.shareService.Authorize(r.Context(), token); err != nil {
		s.writeOpError(w, err)
		return
	}

	png, err := qrcode.Encode(fmt.Sprintf("%s/share/%s", strings.TrimRight(s.config.PublicURL, "/"), token), qrcode.Medium, 256)
	if err != nil {
		s.writeError(w, "failed to render QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// handleShareDownload serves a file through a share link without a
// session. For directory shares the name must be a direct child with an
// allowed extension; for file shares it must be the shared file itself.
func (s *Server) handleShareDownload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	token := vars["token"]

	// mux already decodes path variables, so the name arrives literal.
	name := vars["name"]
	if name == "" || strings.ContainsAny(name, "/\\") {
		s.writeError(w, "invalid file name", http.StatusBadRequest)
		return
	}

	record, err := s.shareService.Authorize(r.Context(), token)
	if err != nil {
		s.writeOpError(w, err)
		return
	}

	var relPath string
	if record.IsDirectory {
		if !storage.AllowedExtensions[strings.ToLower(path.Ext(name))] {
			s.writeError(w, "item not found", http.StatusNotFound)
			return
		}
		relPath = path.Join(record.ItemPath, name)
	} else {
		if name != path.Base(record.ItemPath) {
			s.writeError(w, "item not found", http.StatusNotFound)
			return
		}
		relPath = record.ItemPath
	}

	s.serveFile(w, relPath)
}

// Downloads

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	priv := middleware.PrivilegeFrom(r.Context())
	if !priv.CanView() {
		s.writeError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	relPath := strings.TrimPrefix(r.URL.Path, "/files/")
	s.serveFile(w, relPath)
}

func (s *Server) serveFile(w http.ResponseWriter, relPath string) {
	file, info, err := s.filesystem.Open(relPath)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", contentTypeFor(info.Name()))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", info.Name()))
	io.Copy(w, file)
}

// Status

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	priv := middleware.PrivilegeFrom(r.Context())
	if !priv.CanView() {
		s.writeError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	status := map[string]interface{}{
		"uptimeSeconds": int64(time.Since(s.startTime).Seconds()),
		"storageRoot":   s.config.Storage.Root,
	}
	if usage, err := disk.Usage(s.config.Storage.Root); err == nil {
		status["disk"] = map[string]interface{}{
			"totalBytes":  usage.Total,
			"freeBytes":   usage.Free,
			"usedPercent": usage.UsedPercent,
		}
	}

	s.writeJSON(w, status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "healthy"})
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".ogg":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".m4a":
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}

func resolveOutcome(err error) string {
	switch {
	case errors.Is(err, share.ErrShareExpired):
		return "expired"
	case errors.Is(err, share.ErrShareNotFound):
		return "not_found"
	default:
		return "error"
	}
}
