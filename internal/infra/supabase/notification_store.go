package supabase

import (
	"context"
	"time"

	"github.com/dmelo/fintrack-engine-go/internal/domain"
)

// CreateNotification persists a derived alert event. Delivery is the
// responsibility of an external consumer polling the table.
func (c *Client) CreateNotification(ctx context.Context, n *domain.Notification) error {
	ctx, span := tracer.Start(ctx, "Supabase.CreateNotification")
	defer span.End()

	data := map[string]any{
		"id":         n.ID,
		"owner_id":   n.OwnerID,
		"kind":       n.Kind,
		"title":      n.Title,
		"body":       n.Body,
		"created_at": n.CreatedAt.Format(time.RFC3339),
	}
	if n.EntityID != "" {
		data["entity_id"] = n.EntityID
	}

	_, err := c.doPost(ctx, "notifications", data)
	return err
}
