package presence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// PresencePort defines the interface for presence lookups.
type PresencePort interface {
	LastSeen(ctx context.Context, username string) (Record, bool, error)
}

type presenceAdapter struct {
	container mono.ServiceContainer
}

// NewPresenceAdapter creates a PresencePort backed by the presence module's services.
func NewPresenceAdapter(container mono.ServiceContainer) PresencePort {
	if container == nil {
		panic("presence: ServiceContainer is nil")
	}
	return &presenceAdapter{container: container}
}

func (a *presenceAdapter) LastSeen(ctx context.Context, username string) (Record, bool, error) {
	req := LastSeenRequest{Username: username}
	var resp LastSeenResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceLastSeen,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return Record{}, false, fmt.Errorf("failed to look up presence: %w", err)
	}
	return resp.Record, resp.Found, nil
}
