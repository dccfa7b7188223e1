// Package api exposes the segmentation engine over REST.
package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/audience-engine/internal/pkg/logger"
	"github.com/ignite/audience-engine/internal/segmentation"
)

// SegmentAPI exposes segment CRUD, preview, refresh, and membership
// management. Contact CRUD deliberately has no surface here; contacts
// are read-only input to this service.
type SegmentAPI struct {
	engine      *segmentation.Engine
	segments    segmentation.SegmentStore
	contacts    segmentation.ContactStore
	members     segmentation.MembershipStore
	maxPageSize int
}

// NewSegmentAPI creates the segment handler set.
func NewSegmentAPI(
	engine *segmentation.Engine,
	segments segmentation.SegmentStore,
	contacts segmentation.ContactStore,
	members segmentation.MembershipStore,
	maxPageSize int,
) *SegmentAPI {
	if maxPageSize <= 0 {
		maxPageSize = 1000
	}
	return &SegmentAPI{
		engine:      engine,
		segments:    segments,
		contacts:    contacts,
		members:     members,
		maxPageSize: maxPageSize,
	}
}

// RegisterRoutes mounts the segment endpoints on a chi router.
func (api *SegmentAPI) RegisterRoutes(r chi.Router) {
	r.Route("/segments", func(r chi.Router) {
		r.Post("/", api.HandleCreate)
		r.Get("/", api.HandleList)
		r.Post("/preview", api.HandlePreview)
		r.Get("/{segmentID}", api.HandleGet)
		r.Put("/{segmentID}", api.HandleUpdate)
		r.Delete("/{segmentID}", api.HandleDelete)
		r.Post("/{segmentID}/refresh", api.HandleRefresh)
		r.Get("/{segmentID}/contacts", api.HandleListContacts)
		r.Get("/{segmentID}/export", api.HandleExport)
		r.Post("/{segmentID}/contacts/{contactID}", api.HandleAddContact)
		r.Delete("/{segmentID}/contacts/{contactID}", api.HandleRemoveContact)
	})
}

type segmentRequest struct {
	OwnerID      uuid.UUID           `json:"owner_id"`
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	Conditions   *segmentation.Group `json:"conditions"`
	IsActive     *bool               `json:"is_active"`
	IsAutoUpdate bool                `json:"is_auto_update"`
}

// HandleCreate creates a segment and, per the trigger policy, runs the
// initial materialization for auto-update segments before responding.
func (api *SegmentAPI) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req segmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.OwnerID == uuid.Nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "owner_id and name are required")
		return
	}

	seg := &segmentation.ContactSegment{
		ID:           uuid.New(),
		OwnerID:      req.OwnerID,
		Name:         req.Name,
		Description:  req.Description,
		Conditions:   req.Conditions,
		IsActive:     req.IsActive == nil || *req.IsActive,
		IsAutoUpdate: req.IsAutoUpdate,
	}
	if err := api.segments.Create(r.Context(), seg); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if segmentation.ShouldRefreshOnCreate(seg) {
		if err := api.engine.Refresh(r.Context(), seg.ID); err != nil {
			logger.Error("initial refresh failed", "segment_id", seg.ID.String(), "error", err.Error())
		}
	}

	created, err := api.segments.Get(r.Context(), seg.ID)
	if err != nil || created == nil {
		created = seg
	}
	writeJSON(w, http.StatusCreated, created)
}

func (api *SegmentAPI) HandleList(w http.ResponseWriter, r *http.Request) {
	ownerID, err := uuid.Parse(r.URL.Query().Get("owner_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "owner_id query parameter is required")
		return
	}
	segments, err := api.segments.List(r.Context(), ownerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if segments == nil {
		segments = []*segmentation.ContactSegment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"segments": segments, "total": len(segments)})
}

func (api *SegmentAPI) HandleGet(w http.ResponseWriter, r *http.Request) {
	seg, ok := api.loadSegment(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, seg)
}

// HandleUpdate persists segment changes. Re-materialization happens only
// when the condition tree or the auto-update flag actually changed;
// renames and description edits never trigger a refresh.
func (api *SegmentAPI) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	prev, ok := api.loadSegment(w, r)
	if !ok {
		return
	}

	var req segmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	next := *prev
	if req.Name != "" {
		next.Name = req.Name
	}
	next.Description = req.Description
	next.Conditions = req.Conditions
	next.IsAutoUpdate = req.IsAutoUpdate
	if req.IsActive != nil {
		next.IsActive = *req.IsActive
	}

	if err := api.segments.Update(r.Context(), &next); err != nil {
		writeStoreError(w, err)
		return
	}

	if segmentation.ShouldRefreshOnUpdate(prev, &next) {
		if err := api.engine.Refresh(r.Context(), next.ID); err != nil {
			logger.Error("refresh after update failed", "segment_id", next.ID.String(), "error", err.Error())
		}
	}

	updated, err := api.segments.Get(r.Context(), next.ID)
	if err != nil || updated == nil {
		updated = &next
	}
	writeJSON(w, http.StatusOK, updated)
}

func (api *SegmentAPI) HandleDelete(w http.ResponseWriter, r *http.Request) {
	segmentID, ok := parseSegmentID(w, r)
	if !ok {
		return
	}
	if err := api.segments.Delete(r.Context(), segmentID); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRefresh is the explicit manual refresh, available regardless of
// the auto-update flag.
func (api *SegmentAPI) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	segmentID, ok := parseSegmentID(w, r)
	if !ok {
		return
	}
	if err := api.engine.Refresh(r.Context(), segmentID); err != nil {
		writeStoreError(w, err)
		return
	}
	seg, err := api.segments.Get(r.Context(), segmentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, seg)
}

type previewRequest struct {
	OwnerID    uuid.UUID           `json:"owner_id"`
	ContactID  uuid.UUID           `json:"contact_id"`
	Conditions *segmentation.Group `json:"conditions"`
}

// HandlePreview evaluates a condition tree against one stored contact
// without persisting anything.
func (api *SegmentAPI) HandlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	contact, err := api.contacts.Get(r.Context(), req.OwnerID, req.ContactID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if contact == nil {
		writeError(w, http.StatusNotFound, "contact not found")
		return
	}
	matches := api.engine.EvaluateSegment(req.Conditions, contact)
	writeJSON(w, http.StatusOK, map[string]any{"contact_id": req.ContactID, "matches": matches})
}

func (api *SegmentAPI) HandleListContacts(w http.ResponseWriter, r *http.Request) {
	segmentID, ok := parseSegmentID(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > api.maxPageSize {
		limit = api.maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	ids, err := api.members.ListContactIDs(r.Context(), segmentID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := api.members.Count(r.Context(), segmentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"contact_ids": ids,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
	})
}

// HandleExport streams the segment's current members as CSV. Export
// reads the materialized membership, never the condition tree.
func (api *SegmentAPI) HandleExport(w http.ResponseWriter, r *http.Request) {
	seg, ok := api.loadSegment(w, r)
	if !ok {
		return
	}

	ids, err := api.members.ListContactIDs(r.Context(), seg.ID, 0, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	member := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		member[id] = true
	}

	population, err := api.contacts.ListByOwner(r.Context(), seg.OwnerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="segment-`+seg.ID.String()+`.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{"contact_id", "email", "first_name", "last_name", "company"})
	for i := range population {
		c := &population[i]
		if !member[c.ID] {
			continue
		}
		cw.Write([]string{c.ID.String(), c.Email, c.FirstName, c.LastName, c.Company})
	}
	cw.Flush()
}

func (api *SegmentAPI) HandleAddContact(w http.ResponseWriter, r *http.Request) {
	segmentID, contactID, ok := parseMemberIDs(w, r)
	if !ok {
		return
	}
	if err := api.engine.AddContact(r.Context(), segmentID, contactID); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *SegmentAPI) HandleRemoveContact(w http.ResponseWriter, r *http.Request) {
	segmentID, contactID, ok := parseMemberIDs(w, r)
	if !ok {
		return
	}
	if err := api.engine.RemoveContact(r.Context(), segmentID, contactID); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// helpers

func (api *SegmentAPI) loadSegment(w http.ResponseWriter, r *http.Request) (*segmentation.ContactSegment, bool) {
	segmentID, ok := parseSegmentID(w, r)
	if !ok {
		return nil, false
	}
	seg, err := api.segments.Get(r.Context(), segmentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if seg == nil {
		writeError(w, http.StatusNotFound, "segment not found")
		return nil, false
	}
	return seg, true
}

func parseSegmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "segmentID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid segment id")
		return uuid.Nil, false
	}
	return id, true
}

func parseMemberIDs(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	segmentID, ok := parseSegmentID(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	contactID, err := uuid.Parse(chi.URLParam(r, "contactID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contact id")
		return uuid.Nil, uuid.Nil, false
	}
	return segmentID, contactID, true
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, segmentation.ErrSegmentNotFound),
		errors.Is(err, segmentation.ErrContactNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, segmentation.ErrRefreshInProgress):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
