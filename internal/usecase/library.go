package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"talkbridge/internal/domain"
	"talkbridge/internal/ports"
)

const (
	CollectionHistory               = "translation_history"
	CollectionFavorites             = "translation_favorites"
	CollectionConversations         = "conversation_history"
	CollectionConversationFavorites = "conversation_favorites"

	DefaultHistoryLimit = 100
)

// Library keeps translation history, favorites and saved conversations on
// top of a record store. Reads are returned most recent first.
type Library struct {
	mu sync.Mutex

	history               collection[domain.Translation]
	favorites             collection[domain.Translation]
	conversations         collection[domain.ConversationSession]
	conversationFavorites collection[domain.ConversationSession]
	historyLimit          int
}

func NewLibrary(store ports.Store, historyLimit int) *Library {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	translationID := func(t domain.Translation) string { return t.ID }
	sessionID := func(s domain.ConversationSession) string { return s.ID }
	return &Library{
		history:               collection[domain.Translation]{store: store, name: CollectionHistory, idOf: translationID},
		favorites:             collection[domain.Translation]{store: store, name: CollectionFavorites, idOf: translationID},
		conversations:         collection[domain.ConversationSession]{store: store, name: CollectionConversations, idOf: sessionID},
		conversationFavorites: collection[domain.ConversationSession]{store: store, name: CollectionConversationFavorites, idOf: sessionID},
		historyLimit:          historyLimit,
	}
}

// AddToHistory inserts t as the most recent entry. An earlier entry with the
// same id is replaced and the log is truncated to the history limit.
func (l *Library) AddToHistory(ctx context.Context, t domain.Translation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids, err := l.history.ids(ctx)
	if err != nil {
		return err
	}

	kept := ids[:0]
	for _, id := range ids {
		if id == t.ID {
			if err := l.history.remove(ctx, id); err != nil {
				return err
			}
			continue
		}
		kept = append(kept, id)
	}

	if err := l.history.append(ctx, t); err != nil {
		return err
	}
	kept = append(kept, t.ID)

	if excess := len(kept) - l.historyLimit; excess > 0 {
		return l.history.removeMany(ctx, kept[:excess])
	}
	return nil
}

func (l *Library) History(ctx context.Context) ([]domain.Translation, error) {
	items, err := l.history.list(ctx)
	if err != nil {
		return nil, err
	}
	return newestFirst(items), nil
}

func (l *Library) RemoveFromHistory(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.history.remove(ctx, id)
}

// ClearHistory wipes both translation and conversation history. Favorites survive.
func (l *Library) ClearHistory(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.history.clear(ctx); err != nil {
		return err
	}
	return l.conversations.clear(ctx)
}

// AddFavorite is idempotent by id; added is false when t was already a favorite.
func (l *Library) AddFavorite(ctx context.Context, t domain.Translation) (added bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.favorites.addOnce(ctx, t)
}

func (l *Library) RemoveFavorite(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.favorites.remove(ctx, id)
}

// ToggleFavorite adds t when absent and removes it otherwise.
func (l *Library) ToggleFavorite(ctx context.Context, t domain.Translation) (favorite bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.favorites.toggle(ctx, t)
}

func (l *Library) IsFavorite(ctx context.Context, id string) (bool, error) {
	return l.favorites.contains(ctx, id)
}

func (l *Library) Favorites(ctx context.Context) ([]domain.Translation, error) {
	items, err := l.favorites.list(ctx)
	if err != nil {
		return nil, err
	}
	return newestFirst(items), nil
}

// SaveConversation appends one committed session. Empty sessions are refused.
func (l *Library) SaveConversation(ctx context.Context, session domain.ConversationSession) error {
	if len(session.Turns) == 0 {
		return domain.ErrNothingToSave
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conversations.append(ctx, session)
}

func (l *Library) Conversations(ctx context.Context) ([]domain.ConversationSession, error) {
	items, err := l.conversations.list(ctx)
	if err != nil {
		return nil, err
	}
	return newestFirst(items), nil
}

func (l *Library) DeleteConversation(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conversations.remove(ctx, id)
}

func (l *Library) AddConversationFavorite(ctx context.Context, session domain.ConversationSession) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conversationFavorites.addOnce(ctx, session)
}

func (l *Library) RemoveConversationFavorite(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conversationFavorites.remove(ctx, id)
}

func (l *Library) ToggleConversationFavorite(ctx context.Context, session domain.ConversationSession) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conversationFavorites.toggle(ctx, session)
}

func (l *Library) ConversationFavorites(ctx context.Context) ([]domain.ConversationSession, error) {
	items, err := l.conversationFavorites.list(ctx)
	if err != nil {
		return nil, err
	}
	return newestFirst(items), nil
}

type collection[T any] struct {
	store ports.Store
	name  string
	idOf  func(T) string
}

func (c collection[T]) storageErr(op string, err error) error {
	return domain.Wrap(domain.KindStorage, fmt.Sprintf("%s %s", op, c.name), err)
}

func (c collection[T]) records(ctx context.Context) ([]ports.Record, error) {
	records, err := c.store.List(ctx, c.name)
	if err != nil {
		return nil, c.storageErr("list", err)
	}
	return records, nil
}

func (c collection[T]) ids(ctx context.Context) ([]string, error) {
	records, err := c.records(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}
	return ids, nil
}

func (c collection[T]) list(ctx context.Context) ([]T, error) {
	records, err := c.records(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0, len(records))
	for _, record := range records {
		var item T
		if err := json.Unmarshal(record.Data, &item); err != nil {
			return nil, c.storageErr("decode", fmt.Errorf("record %q: %w", record.ID, err))
		}
		items = append(items, item)
	}
	return items, nil
}

func (c collection[T]) contains(ctx context.Context, id string) (bool, error) {
	ids, err := c.ids(ctx)
	if err != nil {
		return false, err
	}
	for _, existing := range ids {
		if existing == id {
			return true, nil
		}
	}
	return false, nil
}

func (c collection[T]) append(ctx context.Context, item T) error {
	data, err := json.Marshal(item)
	if err != nil {
		return c.storageErr("encode", err)
	}
	if err := c.store.Append(ctx, c.name, ports.Record{ID: c.idOf(item), Data: data}); err != nil {
		return c.storageErr("append", err)
	}
	return nil
}

func (c collection[T]) addOnce(ctx context.Context, item T) (bool, error) {
	exists, err := c.contains(ctx, c.idOf(item))
	if err != nil || exists {
		return false, err
	}
	if err := c.append(ctx, item); err != nil {
		if errors.Is(err, ports.ErrDuplicateRecord) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c collection[T]) toggle(ctx context.Context, item T) (bool, error) {
	id := c.idOf(item)
	exists, err := c.contains(ctx, id)
	if err != nil {
		return false, err
	}
	if exists {
		return false, c.remove(ctx, id)
	}
	if err := c.append(ctx, item); err != nil {
		return false, err
	}
	return true, nil
}

func (c collection[T]) remove(ctx context.Context, id string) error {
	if err := c.store.Remove(ctx, c.name, id); err != nil {
		return c.storageErr("remove", err)
	}
	return nil
}

func (c collection[T]) removeMany(ctx context.Context, ids []string) error {
	if batch, ok := c.store.(ports.BatchRemover); ok {
		if err := batch.RemoveMany(ctx, c.name, ids); err != nil {
			return c.storageErr("remove", err)
		}
		return nil
	}
	for _, id := range ids {
		if err := c.remove(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (c collection[T]) clear(ctx context.Context) error {
	ids, err := c.ids(ctx)
	if err != nil {
		return err
	}
	return c.removeMany(ctx, ids)
}

func newestFirst[T any](items []T) []T {
	out := make([]T, len(items))
	for i, item := range items {
		out[len(items)-1-i] = item
	}
	return out
}
