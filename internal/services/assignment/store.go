package assignment

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/xrmultiplayer/sessionflow/internal/kvstore"
	"github.com/xrmultiplayer/sessionflow/internal/model"
)

// Store reads and writes per-player assignment records in the remote
// key-value store, keyed by the player's identity discriminator. Absent or
// garbled fields fall back to documented defaults on load.
type Store struct {
	kv     kvstore.Store
	logger *slog.Logger
}

// New creates an assignment store
func New(kv kvstore.Store, logger *slog.Logger) *Store {
	return &Store{
		kv:     kv,
		logger: logger.With(slog.String("component", "assignment")),
	}
}

// Load fetches the player's assignment. A store failure is terminal; a
// missing field is not, it takes its default.
func (s *Store) Load(ctx context.Context, uid model.PlayerID) (model.PlayerAssignment, error) {
	a := model.DefaultAssignment()

	scene, ok, err := s.kv.Read(ctx, fieldPath(uid, "scene"))
	if err != nil {
		return a, fmt.Errorf("%w: %v", model.ErrReadFailed, err)
	}
	if ok {
		if n, convErr := strconv.Atoi(scene); convErr == nil && n >= 0 {
			a.SceneIndex = n
		} else {
			s.logger.Warn("unparseable scene index, defaulting to 0",
				slog.String("value", scene))
		}
	} else {
		s.logger.Warn("scene index missing, defaulting to 0",
			slog.String("player_id", string(uid)))
	}

	code, ok, err := s.kv.Read(ctx, fieldPath(uid, "room"))
	if err != nil {
		return a, fmt.Errorf("%w: %v", model.ErrReadFailed, err)
	}
	if ok {
		a.SessionCode = code
	}
	if a.SessionCode == "" {
		s.logger.Warn("session code missing", slog.String("player_id", string(uid)))
	}

	avatar, ok, err := s.kv.Read(ctx, fieldPath(uid, "avatar"))
	if err != nil {
		return a, fmt.Errorf("%w: %v", model.ErrReadFailed, err)
	}
	if ok {
		if n, convErr := strconv.Atoi(avatar); convErr == nil && n >= 0 {
			a.AvatarID = n
		} else {
			s.logger.Warn("unparseable avatar id, defaulting to 0",
				slog.String("value", avatar))
		}
	} else {
		s.logger.Warn("avatar id missing, defaulting to 0",
			slog.String("player_id", string(uid)))
	}

	s.logger.Info("assignment loaded",
		slog.Int("scene", a.SceneIndex),
		slog.String("session_code", a.SessionCode),
		slog.Int("avatar", a.AvatarID))
	return a, nil
}

// Save writes the full assignment back. Fields are written individually;
// concurrent writers are last-writer-wins per field.
func (s *Store) Save(ctx context.Context, uid model.PlayerID, a model.PlayerAssignment) error {
	writes := []struct {
		field string
		value string
	}{
		{"scene", strconv.Itoa(a.SceneIndex)},
		{"room", a.SessionCode},
		{"avatar", strconv.Itoa(a.AvatarID)},
	}
	for _, w := range writes {
		if err := s.kv.Write(ctx, fieldPath(uid, w.field), w.value); err != nil {
			return fmt.Errorf("%w: %s: %v", model.ErrWriteFailed, w.field, err)
		}
	}
	s.logger.Info("assignment saved", slog.String("player_id", string(uid)))
	return nil
}

// PublishSceneTable writes the global scene index -> name table so
// out-of-band tooling can resolve assigned scene indices
func (s *Store) PublishSceneTable(ctx context.Context, scenes []string) error {
	for i, name := range scenes {
		if err := s.kv.Write(ctx, fmt.Sprintf("scenes/%d", i), name); err != nil {
			return fmt.Errorf("%w: scenes/%d: %v", model.ErrWriteFailed, i, err)
		}
	}
	return nil
}

func fieldPath(uid model.PlayerID, field string) string {
	return fmt.Sprintf("players/%s/%s", uid, field)
}
