package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hoffnungslabor/mediable/pkg/httputil"
	"github.com/hoffnungslabor/mediable/pkg/mediable"
	"github.com/hoffnungslabor/mediable/pkg/pagination"
	"github.com/hoffnungslabor/mediable/pkg/validator"

	"github.com/hoffnungslabor/mediable/internal/service"
)

// AttachmentHandler handles HTTP requests for media attachment endpoints.
type AttachmentHandler struct {
	service *service.AttachmentService
	logger  *slog.Logger
}

// NewAttachmentHandler creates a new attachment HTTP handler.
func NewAttachmentHandler(svc *service.AttachmentService, logger *slog.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// InlineMediaRequest describes a media record created inline during attach.
type InlineMediaRequest struct {
	ID        string `json:"id"`
	Disk      string `json:"disk" validate:"required,notblank"`
	Directory string `json:"directory"`
	Filename  string `json:"filename" validate:"required,notblank"`
	Extension string `json:"extension"`
	MimeType  string `json:"mime_type"`
	Size      int64  `json:"size" validate:"gte=0"`
}

// AttachRequest is the JSON request body for attach and sync operations.
// References may name existing records by ID, carry new inline records, or
// mix both.
type AttachRequest struct {
	MediaIDs []string             `json:"media_ids" validate:"dive,notblank"`
	Media    []InlineMediaRequest `json:"media" validate:"dive"`
	Tags     []string             `json:"tags" validate:"required,min=1,dive,notblank"`
}

func (req *AttachRequest) toInput() *service.AttachInput {
	input := &service.AttachInput{
		MediaIDs: req.MediaIDs,
		Tags:     req.Tags,
	}
	for _, m := range req.Media {
		input.Media = append(input.Media, &mediable.Media{
			ID:        m.ID,
			Disk:      m.Disk,
			Directory: m.Directory,
			Filename:  m.Filename,
			Extension: m.Extension,
			MimeType:  m.MimeType,
			Size:      m.Size,
			Tags:      mediable.NewTagSet(),
		})
	}
	return input
}

// --- Response DTOs ---

type cascadeResponse struct {
	HostType    string `json:"host_type"`
	HostID      string `json:"host_id"`
	SoftDelete  bool   `json:"soft_delete"`
	PurgedCount int    `json:"purged_count"`
}

// --- Parameter helpers ---

func hostParams(r *http.Request) mediable.HostRef {
	return mediable.HostRef{
		Type: chi.URLParam(r, "hostType"),
		ID:   chi.URLParam(r, "hostID"),
	}
}

// tagsParam parses the comma-separated tags query parameter. Tags are taken
// exactly as given; only empty entries are dropped.
func tagsParam(r *http.Request) []string {
	raw := r.URL.Query().Get("tags")
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	tags := parts[:0]
	for _, p := range parts {
		if p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// matchParam parses the match query parameter. Absent defaults to any.
func matchParam(w http.ResponseWriter, r *http.Request) (matchAll, ok bool) {
	switch r.URL.Query().Get("match") {
	case "", "any":
		return false, true
	case "all":
		return true, true
	default:
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "match must be any or all"},
		})
		return false, false
	}
}

// softParam parses the soft query parameter. Absent defaults to false.
func softParam(w http.ResponseWriter, r *http.Request) (soft, ok bool) {
	raw := r.URL.Query().Get("soft")
	if raw == "" {
		return false, true
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "soft must be true or false"},
		})
		return false, false
	}
	return v, true
}

// --- Host-scoped handlers ---

// AttachMedia handles POST /api/v1/hosts/{hostType}/{hostID}/media.
func (h *AttachmentHandler) AttachMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req AttachRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	media, err := h.service.AttachMedia(r.Context(), hostParams(r), req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: media})
}

// SyncMedia handles PUT /api/v1/hosts/{hostType}/{hostID}/media.
func (h *AttachmentHandler) SyncMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req AttachRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	media, err := h.service.SyncMedia(r.Context(), hostParams(r), req.toInput())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: media})
}

// ListMedia handles GET /api/v1/hosts/{hostType}/{hostID}/media.
func (h *AttachmentHandler) ListMedia(w http.ResponseWriter, r *http.Request) {
	matchAll, ok := matchParam(w, r)
	if !ok {
		return
	}

	media, err := h.service.ListMedia(r.Context(), hostParams(r), tagsParam(r), matchAll)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if media == nil {
		media = []*mediable.Media{}
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: media})
}

// FirstMedia handles GET /api/v1/hosts/{hostType}/{hostID}/media/first.
func (h *AttachmentHandler) FirstMedia(w http.ResponseWriter, r *http.Request) {
	media, err := h.service.FirstMedia(r.Context(), hostParams(r), tagsParam(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: media})
}

// LastMedia handles GET /api/v1/hosts/{hostType}/{hostID}/media/last.
func (h *AttachmentHandler) LastMedia(w http.ResponseWriter, r *http.Request) {
	media, err := h.service.LastMedia(r.Context(), hostParams(r), tagsParam(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: media})
}

// MediaByTag handles GET /api/v1/hosts/{hostType}/{hostID}/media/by-tag.
func (h *AttachmentHandler) MediaByTag(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.service.ListMediaByTag(r.Context(), hostParams(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: buckets})
}

// MediaTags handles GET /api/v1/hosts/{hostType}/{hostID}/media/{mediaID}/tags.
func (h *AttachmentHandler) MediaTags(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "mediaID")
	if mediaID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "media id is required"},
		})
		return
	}

	tags, err := h.service.GetMediaTags(r.Context(), hostParams(r), mediaID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: tags})
}

// DetachMedia handles DELETE /api/v1/hosts/{hostType}/{hostID}/media/{mediaID}.
// Without a tags parameter the record is removed from every tag.
func (h *AttachmentHandler) DetachMedia(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "mediaID")
	if mediaID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "media id is required"},
		})
		return
	}

	if err := h.service.DetachMedia(r.Context(), hostParams(r), mediaID, tagsParam(r)); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"media_id": mediaID, "status": "detached"}})
}

// DetachTags handles DELETE /api/v1/hosts/{hostType}/{hostID}/media?tags=a,b.
func (h *AttachmentHandler) DetachTags(w http.ResponseWriter, r *http.Request) {
	tags := tagsParam(r)

	if err := h.service.DetachTags(r.Context(), hostParams(r), tags); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"tags": tags, "status": "detached"}})
}

// CascadeHost handles DELETE /api/v1/hosts/{hostType}/{hostID}. It applies
// the cascade policy for a host entity that was deleted upstream; the host
// record itself lives in another service.
func (h *AttachmentHandler) CascadeHost(w http.ResponseWriter, r *http.Request) {
	soft, ok := softParam(w, r)
	if !ok {
		return
	}

	host := hostParams(r)
	purged, err := h.service.HostDeleted(r.Context(), host, soft)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: cascadeResponse{
		HostType:    host.Type,
		HostID:      host.ID,
		SoftDelete:  soft,
		PurgedCount: purged,
	}})
}

// ListHosts handles GET /api/v1/hosts/{hostType}.
func (h *AttachmentHandler) ListHosts(w http.ResponseWriter, r *http.Request) {
	matchAll, ok := matchParam(w, r)
	if !ok {
		return
	}

	params := pagination.FromRequest(r)
	hosts, total, err := h.service.ListHostsWithMedia(r.Context(), chi.URLParam(r, "hostType"), tagsParam(r), matchAll, params.Page, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if hosts == nil {
		hosts = []mediable.HostRef{}
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(hosts, total, params))
}

// --- Media record handlers ---

// GetMedia handles GET /api/v1/media/{mediaID}.
func (h *AttachmentHandler) GetMedia(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "mediaID")
	if mediaID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "media id is required"},
		})
		return
	}

	media, err := h.service.GetMedia(r.Context(), mediaID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: media})
}

// DeleteMedia handles DELETE /api/v1/media/{mediaID}. The soft parameter
// selects between hiding the record and removing it permanently.
func (h *AttachmentHandler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "mediaID")
	if mediaID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "media id is required"},
		})
		return
	}

	soft, ok := softParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteMedia(r.Context(), mediaID, soft); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": mediaID, "status": "deleted"}})
}
