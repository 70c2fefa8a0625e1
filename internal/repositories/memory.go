package repositories

import (
	"context"
	"slices"
	"sync"

	"github.com/vidgallery/backend/internal/models"
)

// MemoryStore implements the user and video repositories in memory for tests
// and local development. It mirrors the uniqueness rules of the SQL schema.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[string]models.UserProfile
	videos map[string]models.Video
	// insertion order, to imitate an unordered store result
	order []string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]models.UserProfile),
		videos: make(map[string]models.Video),
	}
}

// Users exposes the store through the UserRepository contract.
func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }

// Videos exposes the store through the VideoRepository contract.
func (s *MemoryStore) Videos() VideoRepository { return memoryVideos{s} }

type memoryUsers struct{ s *MemoryStore }

func (m memoryUsers) Create(_ context.Context, profile models.UserProfile) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.conflictsLocked(profile) {
		return ErrConflict
	}
	m.s.users[profile.UID] = profile
	return nil
}

func (m memoryUsers) CreateIfAbsent(_ context.Context, profile models.UserProfile) (models.UserProfile, bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if existing, ok := m.s.users[profile.UID]; ok {
		return existing, false, nil
	}
	if m.s.conflictsLocked(profile) {
		return models.UserProfile{}, false, ErrConflict
	}
	m.s.users[profile.UID] = profile
	return profile, true, nil
}

func (s *MemoryStore) conflictsLocked(profile models.UserProfile) bool {
	for _, existing := range s.users {
		if existing.UID == profile.UID || existing.ShareToken == profile.ShareToken {
			return true
		}
		if !profile.Federated() && !existing.Federated() && existing.Email == profile.Email {
			return true
		}
	}
	return false
}

func (m memoryUsers) FindByID(_ context.Context, uid string) (models.UserProfile, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	user, ok := m.s.users[uid]
	if !ok {
		return models.UserProfile{}, ErrNotFound
	}
	return user, nil
}

func (m memoryUsers) FindByEmail(_ context.Context, email string) (models.UserProfile, error) {
	return m.find(func(u models.UserProfile) bool { return !u.Federated() && u.Email == email })
}

func (m memoryUsers) FindByShareToken(_ context.Context, token string) (models.UserProfile, error) {
	return m.find(func(u models.UserProfile) bool { return u.ShareToken == token })
}

func (m memoryUsers) find(match func(models.UserProfile) bool) (models.UserProfile, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	for _, user := range m.s.users {
		if match(user) {
			return user, nil
		}
	}
	return models.UserProfile{}, ErrNotFound
}

type memoryVideos struct{ s *MemoryStore }

func (m memoryVideos) Create(_ context.Context, video models.Video) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.users[video.UserID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.s.videos[video.ID]; ok {
		return ErrConflict
	}
	if video.ThumbnailAssetStatus == "" {
		video.ThumbnailAssetStatus = models.AssetStatusPending
	}
	video.Tags = slices.Clone(video.Tags)
	m.s.videos[video.ID] = video
	m.s.order = append(m.s.order, video.ID)
	return nil
}

func (m memoryVideos) ListByOwner(_ context.Context, userID string) ([]models.Video, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var out []models.Video
	for _, id := range m.s.order {
		video, ok := m.s.videos[id]
		if !ok || video.UserID != userID {
			continue
		}
		video.Tags = slices.Clone(video.Tags)
		out = append(out, video)
	}
	return out, nil
}

func (m memoryVideos) UpdateDetails(_ context.Context, userID, videoID, title string, tags []string) (models.Video, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	video, ok := m.s.videos[videoID]
	if !ok || video.UserID != userID {
		return models.Video{}, ErrNotFound
	}
	video.Title = title
	video.Tags = slices.Clone(tags)
	m.s.videos[videoID] = video
	return video, nil
}

func (m memoryVideos) Delete(_ context.Context, userID, videoID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	video, ok := m.s.videos[videoID]
	if !ok || video.UserID != userID {
		return ErrNotFound
	}
	delete(m.s.videos, videoID)
	m.s.order = slices.DeleteFunc(m.s.order, func(id string) bool { return id == videoID })
	return nil
}

func (m memoryVideos) MarkThumbnailReady(_ context.Context, videoID, location string) error {
	return m.setThumbnail(videoID, models.AssetStatusReady, location)
}

func (m memoryVideos) MarkThumbnailFailed(_ context.Context, videoID string) error {
	return m.setThumbnail(videoID, models.AssetStatusFailed, "")
}

func (m memoryVideos) setThumbnail(videoID, status, location string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	video, ok := m.s.videos[videoID]
	if !ok {
		return ErrNotFound
	}
	video.ThumbnailAssetStatus = status
	video.ThumbnailAssetURL = location
	m.s.videos[videoID] = video
	return nil
}
