package api

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/rushteam/estaterec/core"
)

// likeRequest 是 like / unlike 的请求体
type likeRequest struct {
	UserID     string `json:"user_id"`
	PropertyID string `json:"property_id"`
}

// likeResponse 与 like 结果一一对应，重复 like 不是错误
type likeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	listings, err := h.engine.Search(r.Context(), q.Get("text"), q.Get("filter"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context(), r.URL.Query().Get("text"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) recommend(w http.ResponseWriter, r *http.Request) {
	rec, err := h.engine.Recommend(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *handler) refresh(w http.ResponseWriter, _ *http.Request) {
	h.engine.RequestRefresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "recommendation calculation in progress"})
}

func (h *handler) liked(w http.ResponseWriter, r *http.Request) {
	ids, err := h.engine.Liked(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (h *handler) like(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeLike(w, r)
	if !ok {
		return
	}
	created, err := h.engine.Like(r.Context(), req.UserID, req.PropertyID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !created {
		writeJSON(w, http.StatusOK, likeResponse{Success: false, Message: "unique constraint failed"})
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{Success: true, Message: "reaction stored"})
}

func (h *handler) unlike(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeLike(w, r)
	if !ok {
		return
	}
	deleted, err := h.engine.Unlike(r.Context(), req.UserID, req.PropertyID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusOK, likeResponse{Success: false, Message: "something went wrong"})
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{Success: true, Message: "reaction deleted"})
}

func (h *handler) property(w http.ResponseWriter, r *http.Request) {
	l, err := h.engine.Property(r.Context(), r.URL.Query().Get("property_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *handler) bookmarked(w http.ResponseWriter, r *http.Request) {
	listings, err := h.engine.Bookmarked(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *handler) decodeLike(w http.ResponseWriter, r *http.Request) (likeRequest, bool) {
	var req likeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		h.fail(w, r, core.InvalidInput(core.ModuleService, "invalid request body: %v", err))
		return req, false
	}
	return req, true
}

// fail 把领域错误映射为 HTTP 状态码
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := core.ErrorCodeInternalError
	msg := "internal error"
	if de := core.GetDomainError(err); de != nil {
		code = de.Code
		msg = de.Error()
		switch de.Code {
		case core.ErrorCodeInvalidInput:
			status = http.StatusBadRequest
		case core.ErrorCodeNotFound:
			status = http.StatusNotFound
		case core.ErrorCodeUnavailable:
			status = http.StatusServiceUnavailable
			msg = de.Message
		}
	}

	ev := h.logger.Warn()
	if status >= http.StatusInternalServerError {
		ev = h.logger.Error()
	}
	ev.Err(err).
		Str("request_id", chimiddleware.GetReqID(r.Context())).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("request failed")

	writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: msg}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":{"code":"INTERNAL_ERROR","message":"encode response"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
