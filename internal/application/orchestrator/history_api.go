package orchestrator

import (
	"context"
	"os"
	"strings"

	"github.com/longregen/alicia/internal/domain"
	"github.com/longregen/alicia/internal/domain/models"
)

// HistoryPage is the response shape for the history endpoint.
type HistoryPage struct {
	Entries []*models.ConversationEntry `json:"entries"`
	Total   int                         `json:"total"`
}

// History delegates to the durable log's ListRange, which returns the
// window [max(0,end-count), end) in chronological order.
func (o *Orchestrator) History(ctx context.Context, userID string, end, count int) (*HistoryPage, error) {
	entries, total, err := o.Entries.ListRange(ctx, userID, end, count)
	if err != nil {
		return nil, err
	}
	return &HistoryPage{Entries: entries, Total: total}, nil
}

// FetchImage returns the raw bytes and content-type of an image
// ConversationEntry previously stored by HandleImage, after verifying
// the caller owns it.
func (o *Orchestrator) FetchImage(ctx context.Context, userID, entryID string) ([]byte, string, error) {
	entry, err := o.Entries.GetByID(ctx, entryID)
	if err != nil {
		return nil, "", domain.NewDomainError(domain.KindNotFound, domain.ErrImageNotFound, err.Error())
	}
	if entry.UserID != userID {
		return nil, "", domain.NewDomainError(domain.KindAuth, domain.ErrTokenInvalid, "image belongs to another user")
	}
	if entry.ContentType != models.ContentTypeImage {
		return nil, "", domain.NewDomainError(domain.KindNotFound, domain.ErrImageNotFound, "entry is not an image")
	}

	serverPath, _ := entry.AuxData["server_path"].(string)
	if serverPath == "" {
		return nil, "", domain.NewDomainError(domain.KindState, domain.ErrImageNotFound, "entry has no server_path")
	}

	data, err := os.ReadFile(serverPath)
	if err != nil {
		return nil, "", domain.NewDomainError(domain.KindNotFound, domain.ErrImageNotFound, err.Error())
	}
	return data, contentTypeFromExt(serverPath), nil
}

func contentTypeFromExt(path string) string {
	switch {
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
