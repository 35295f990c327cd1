package outbox

import (
	"context"

	"github.com/calmspace/practice/libs/events"
)

// Notifier writes committed scheduling intents to the outbox table.
type Notifier struct {
	db   Execer
	repo *Repository
}

func NewNotifier(db Execer, repo *Repository) *Notifier {
	return &Notifier{db: db, repo: repo}
}

func (n *Notifier) Notify(ctx context.Context, intent events.Intent) error {
	evt, err := FromIntent(intent)
	if err != nil {
		return err
	}
	return n.repo.Insert(ctx, n.db, evt)
}
