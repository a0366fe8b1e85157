package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/longregen/alicia/internal/adapters/imagenorm"
	"github.com/longregen/alicia/internal/application/orchestrator"
	"github.com/longregen/alicia/internal/application/streaming"
	"github.com/longregen/alicia/internal/domain"
)

// ChatHandler serves the streaming chat, image-chat, history, and
// image-fetch endpoints on top of the turn orchestrator, flushing one
// SSE event per output frame.
type ChatHandler struct {
	orchestrator *orchestrator.Orchestrator
}

func NewChatHandler(o *orchestrator.Orchestrator) *ChatHandler {
	return &ChatHandler{orchestrator: o}
}

type chatTextRequest struct {
	Username string `json:"username"`
	Token    string `json:"token"`
	Text     string `json:"text"`
}

// StreamText handles the streaming chat endpoint.
func (h *ChatHandler) StreamText(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[chatTextRequest](r, w)
	if !ok {
		return
	}

	userID, err := h.orchestrator.AuthenticatedUserID(r.Context(), req.Username, req.Token)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, "internal_error", "streaming not supported", http.StatusInternalServerError)
		return
	}
	setSSEHeaders(w)

	sink := sseSink(w, flusher)
	if err := h.orchestrator.HandleText(r.Context(), userID, req.Text, sink); err != nil {
		log.Printf("[ChatHandler] StreamText failed: user=%s err=%v", userID, err)
	}
}

// StreamImage handles the image-chat endpoint: a multipart request
// carrying {username, token, image, image_client_path}.
func (h *ChatHandler) StreamImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(16 << 20); err != nil {
		respondError(w, "invalid_request", "failed to parse multipart form", http.StatusBadRequest)
		return
	}

	username := r.FormValue("username")
	token := r.FormValue("token")
	clientPath := r.FormValue("image_client_path")

	file, _, err := r.FormFile("image")
	if err != nil {
		respondError(w, "invalid_request", "image file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	imageBytes, err := io.ReadAll(file)
	if err != nil {
		respondError(w, "invalid_request", "failed to read image", http.StatusBadRequest)
		return
	}

	userID, err := h.orchestrator.AuthenticatedUserID(r.Context(), username, token)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, "internal_error", "streaming not supported", http.StatusInternalServerError)
		return
	}
	setSSEHeaders(w)

	sink := sseSink(w, flusher)
	if err := h.orchestrator.HandleImage(r.Context(), userID, imageBytes, clientPath, imagenorm.Normalize, sink); err != nil {
		log.Printf("[ChatHandler] StreamImage failed: user=%s err=%v", userID, err)
	}
}

type historyRequest struct {
	Username string `json:"username"`
	Token    string `json:"token"`
	Count    int    `json:"count"`
	EndIndex int    `json:"end_index"`
}

type historyEntryDTO struct {
	UUID      string `json:"uuid"`
	Content   string `json:"content"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
}

type historyResponse struct {
	History    []historyEntryDTO `json:"history"`
	StartIndex int               `json:"start_index"`
}

// History handles the history endpoint.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[historyRequest](r, w)
	if !ok {
		return
	}

	userID, err := h.orchestrator.AuthenticatedUserID(r.Context(), req.Username, req.Token)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	page, err := h.orchestrator.History(r.Context(), userID, req.EndIndex, req.Count)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	startIndex := page.Total - req.Count
	if req.EndIndex >= 0 {
		startIndex = req.EndIndex - req.Count
	}
	if startIndex < 0 {
		startIndex = 0
	}

	resp := historyResponse{StartIndex: startIndex}
	for _, e := range page.Entries {
		resp.History = append(resp.History, historyEntryDTO{
			UUID:      e.ID,
			Content:   e.Content,
			Source:    string(e.Source),
			Timestamp: e.Timestamp.Format("2006-01-02T15:04:05Z"),
			Type:      string(e.ContentType),
		})
	}
	respondJSON(w, resp, http.StatusOK)
}

type imageFetchRequest struct {
	Username  string `json:"username"`
	Token     string `json:"token"`
	ImageUUID string `json:"image_uuid"`
}

// FetchImage handles the image-fetch endpoint.
func (h *ChatHandler) FetchImage(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[imageFetchRequest](r, w)
	if !ok {
		return
	}

	userID, err := h.orchestrator.AuthenticatedUserID(r.Context(), req.Username, req.Token)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	data, contentType, err := h.orchestrator.FetchImage(r.Context(), userID, req.ImageUUID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// sseSink adapts a streaming.FrameSink onto one `data: <json>\n\n`
// line per frame, flushed immediately. Mid-stream failures simply
// truncate the stream; there is no error trailer.
func sseSink(w http.ResponseWriter, flusher http.Flusher) streaming.FrameSink {
	return func(_ context.Context, frame streaming.Frame) error {
		payload, err := json.Marshal(frame)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}
}

func respondDomainError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	switch kind {
	case domain.KindAuth:
		respondError(w, "auth_error", err.Error(), http.StatusUnauthorized)
	case domain.KindValidation:
		respondError(w, "validation_error", err.Error(), http.StatusBadRequest)
	case domain.KindNotFound:
		respondError(w, "not_found", err.Error(), http.StatusNotFound)
	default:
		respondError(w, "internal_error", "internal error", http.StatusInternalServerError)
	}
}
