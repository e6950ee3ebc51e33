package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/vendalive/fulfillment/internal/config"
	"github.com/vendalive/fulfillment/internal/models"
)

func NewClient(cfg *config.Config) (*elasticsearch.Client, error) {
	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.ES_URL},
		Username:  cfg.ES_USER,
		Password:  cfg.ES_PASSWORD,
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("es client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("es info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("es error response: %s", body)
	}

	return client, nil
}

// AuditIndexer mirrors status-history entries into the search index the ops
// dashboard queries. Indexing is best-effort; the database row is the audit
// truth.
type AuditIndexer struct {
	Client *elasticsearch.Client
	Index  string
	Log    *slog.Logger
}

func (a *AuditIndexer) IndexHistoryEntry(ctx context.Context, entry models.StatusHistoryEntry) {
	if a == nil || a.Client == nil {
		return
	}

	doc := HistoryDoc(entry)
	data, err := json.Marshal(doc)
	if err != nil {
		a.Log.Error("audit index marshal", "error", err)
		return
	}

	res, err := a.Client.Index(
		a.Index,
		bytes.NewReader(data),
		a.Client.Index.WithContext(ctx),
		a.Client.Index.WithDocumentID(fmt.Sprintf("%d", entry.ID)),
	)
	if err != nil {
		a.Log.Error("audit index", "error", err, "entry_id", entry.ID)
		return
	}
	defer res.Body.Close()
	if res.IsError() {
		a.Log.Error("audit index response", "status", res.Status(), "entry_id", entry.ID)
	}
}

// HistoryDoc flattens a history entry into the indexed document shape.
func HistoryDoc(entry models.StatusHistoryEntry) map[string]interface{} {
	return map[string]interface{}{
		"order_id":   entry.OrderID,
		"old_status": entry.OldStatus,
		"new_status": entry.NewStatus,
		"note":       entry.Note,
		"actor_id":   entry.ActorID,
		"timestamp":  entry.CreatedAt,
	}
}
