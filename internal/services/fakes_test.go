package services

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"photo-library-backend/internal/models"
)

// memStore is an in-memory stand-in for the database. It implements every
// repository interface over shared state so that the event-per-mutation
// contract can be asserted across repositories, the way the real
// implementations share one event log table.
type memStore struct {
	mu          sync.Mutex
	nextPhotoID int64
	nextEventID int64
	photos      map[int64]models.Photo
	hashes      map[int64][]byte
	events      []memEvent
	users       map[string]models.User
	favorites   map[int64]map[string]bool
}

type memEvent struct {
	eventID int64
	photoID int64
	owner   *string
	data    []byte
}

func newMemStore() *memStore {
	return &memStore{
		photos:    make(map[int64]models.Photo),
		hashes:    make(map[int64][]byte),
		users:     make(map[string]models.User),
		favorites: make(map[int64]map[string]bool),
	}
}

func (m *memStore) visible(photo models.Photo, userID string) bool {
	return photo.Owner == nil || *photo.Owner == userID
}

func sameScope(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// appendEvent records a snapshot event for the photo. Callers hold m.mu.
func (m *memStore) appendEvent(photo models.Photo) {
	data, err := json.Marshal(photo)
	if err != nil {
		panic(err)
	}
	m.nextEventID++
	m.events = append(m.events, memEvent{
		eventID: m.nextEventID,
		photoID: photo.ID,
		owner:   photo.Owner,
		data:    data,
	})
}

// appendDeletion records a nil-data event for the photo. Callers hold m.mu.
func (m *memStore) appendDeletion(photoID int64, owner *string) {
	m.nextEventID++
	m.events = append(m.events, memEvent{
		eventID: m.nextEventID,
		photoID: photoID,
		owner:   owner,
	})
}

// --- PhotoRepo ---

func (m *memStore) GetPhoto(_ context.Context, id int64, userID string) (*models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	photo, ok := m.photos[id]
	if !ok || !m.visible(photo, userID) {
		return nil, models.ErrNotFound
	}
	return &photo, nil
}

func (m *memStore) PhotosByOwner(_ context.Context, owner *string) ([]models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Photo
	for _, photo := range m.photos {
		if sameScope(photo.Owner, owner) {
			out = append(out, photo)
		}
	}
	return out, nil
}

func (m *memStore) FullSnapshot(_ context.Context, userID string) (*models.FullSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var photos []models.Photo
	for _, photo := range m.photos {
		if m.visible(photo, userID) && photo.TrashedOn == nil {
			photos = append(photos, photo)
		}
	}
	sort.Slice(photos, func(i, j int) bool {
		return photos[i].CreatedAt.After(photos[j].CreatedAt)
	})
	return &models.FullSnapshot{HighWaterMark: m.nextEventID, Photos: photos}, nil
}

func (m *memStore) TrashedPhotos(_ context.Context, userID string) ([]models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var photos []models.Photo
	for _, photo := range m.photos {
		if m.visible(photo, userID) && photo.TrashedOn != nil {
			photos = append(photos, photo)
		}
	}
	return photos, nil
}

func (m *memStore) InsertPhoto(_ context.Context, photo models.Photo) (models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(photo), nil
}

func (m *memStore) insertLocked(photo models.Photo) models.Photo {
	m.nextPhotoID++
	photo.ID = m.nextPhotoID
	m.photos[photo.ID] = photo
	m.appendEvent(photo)
	return photo
}

func (m *memStore) InsertPhotos(_ context.Context, photos []models.Photo) ([]models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := make([]models.Photo, 0, len(photos))
	for _, photo := range photos {
		inserted = append(inserted, m.insertLocked(photo))
	}
	return inserted, nil
}

func (m *memStore) UpdatePhoto(_ context.Context, photo models.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(photo)
}

func (m *memStore) updateLocked(photo models.Photo) error {
	current, ok := m.photos[photo.ID]
	if !ok {
		return models.ErrNotFound
	}
	photo.ThumbHash = current.ThumbHash
	m.photos[photo.ID] = photo
	m.appendEvent(photo)
	return nil
}

func (m *memStore) MovePhoto(_ context.Context, photo models.Photo, moveFile func() error, _ func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.photos[photo.ID]; !ok {
		return models.ErrNotFound
	}
	// Staged row change is only kept when the file move succeeds.
	if err := moveFile(); err != nil {
		return err
	}
	return m.updateLocked(photo)
}

func (m *memStore) DeletePhoto(_ context.Context, photo models.Photo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.photos[photo.ID]
	if !ok {
		return models.ErrNotFound
	}
	m.appendDeletion(stored.ID, stored.Owner)
	delete(m.photos, stored.ID)
	delete(m.hashes, stored.ID)
	delete(m.favorites, stored.ID)
	return nil
}

func (m *memStore) DeletePhotos(_ context.Context, photoIDs []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for _, id := range photoIDs {
		stored, ok := m.photos[id]
		if !ok {
			continue
		}
		m.appendDeletion(stored.ID, stored.Owner)
		delete(m.photos, id)
		delete(m.hashes, id)
		delete(m.favorites, id)
		deleted++
	}
	return deleted, nil
}

func (m *memStore) DuplicatePathRows(_ context.Context) ([]models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	earliest := make(map[string]int64)
	for id, photo := range m.photos {
		key := models.OwnerDir(photo.Owner) + "/" + photo.FullName()
		if first, ok := earliest[key]; !ok || id < first {
			earliest[key] = id
		}
	}

	var out []models.Photo
	for id, photo := range m.photos {
		key := models.OwnerDir(photo.Owner) + "/" + photo.FullName()
		if earliest[key] != id {
			out = append(out, photo)
		}
	}
	return out, nil
}

func (m *memStore) ExpiredTrashPhotos(_ context.Context, cutoff time.Time) ([]models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Photo
	for _, photo := range m.photos {
		if photo.TrashedOn != nil && !photo.TrashedOn.After(cutoff) {
			out = append(out, photo)
		}
	}
	return out, nil
}

func (m *memStore) PhotosWithoutThumbHash(_ context.Context) ([]models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Photo
	for _, photo := range m.photos {
		if photo.ThumbHash == nil {
			out = append(out, photo)
		}
	}
	return out, nil
}

func (m *memStore) UpdateThumbHashes(_ context.Context, batch []models.PhotoThumbHash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, item := range batch {
		photo, ok := m.photos[item.PhotoID]
		if !ok {
			continue
		}
		photo.ThumbHash = item.ThumbHash
		m.photos[item.PhotoID] = photo
		m.appendEvent(photo)
	}
	return nil
}

func (m *memStore) PhotoIDsInFolder(_ context.Context, owner *string, folder string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []int64
	for id, photo := range m.photos {
		if sameScope(photo.Owner, owner) && photo.Folder != nil && *photo.Folder == folder {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *memStore) AllPhotoIDs(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]int64, 0, len(m.photos))
	for id := range m.photos {
		out = append(out, id)
	}
	return out, nil
}

// --- EventLogRepo ---

func (m *memStore) EventsSince(_ context.Context, userID string, lastSyncedEventID int64) (*models.ChangeSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.events) == 0 {
		return nil, models.ErrResyncRequired
	}
	minID := m.events[0].eventID
	maxID := m.events[len(m.events)-1].eventID
	if lastSyncedEventID < minID || lastSyncedEventID > maxID {
		return nil, models.ErrResyncRequired
	}

	var entries []models.EventLogEntry
	for _, ev := range m.events {
		if ev.eventID <= lastSyncedEventID {
			continue
		}
		if ev.owner != nil && *ev.owner != userID {
			continue
		}
		entries = append(entries, models.EventLogEntry{
			EventID: ev.eventID,
			PhotoID: ev.photoID,
			Data:    ev.data,
		})
	}
	return &models.ChangeSet{HighWaterMark: maxID, Events: entries}, nil
}

func (m *memStore) MaxEventID(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.events) == 0 {
		return 0, nil
	}
	return m.events[len(m.events)-1].eventID, nil
}

func (m *memStore) DeleteAllButLast(_ context.Context, rowsToKeep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.events) == 0 {
		return nil
	}
	threshold := m.events[len(m.events)-1].eventID - int64(rowsToKeep)
	kept := m.events[:0]
	for _, ev := range m.events {
		if ev.eventID > threshold {
			kept = append(kept, ev)
		}
	}
	m.events = kept
	return nil
}

// --- HashRepo ---

func (m *memStore) PhotosWithoutHash(_ context.Context) ([]models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Photo
	for id, photo := range m.photos {
		if _, ok := m.hashes[id]; ok || photo.TrashedOn != nil {
			continue
		}
		out = append(out, photo)
	}
	return out, nil
}

func (m *memStore) UpsertHashes(_ context.Context, hashes []models.PhotoHash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range hashes {
		m.hashes[h.PhotoID] = h.Hash
	}
	return nil
}

func (m *memStore) PhotoWithHash(_ context.Context, owner *string, hash []byte) (*models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, stored := range m.hashes {
		photo, ok := m.photos[id]
		if ok && sameScope(photo.Owner, owner) && bytes.Equal(stored, hash) {
			return &photo, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) DuplicateGroups(_ context.Context, userID string) ([][]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byHash := make(map[string][]int64)
	for id, hash := range m.hashes {
		photo, ok := m.photos[id]
		if !ok || !m.visible(photo, userID) || photo.TrashedOn != nil {
			continue
		}
		byHash[string(hash)] = append(byHash[string(hash)], id)
	}

	var groups [][]int64
	for _, ids := range byHash {
		if len(ids) < 2 {
			continue
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		groups = append(groups, ids)
	}
	return groups, nil
}

// --- FavoriteRepo ---

func (m *memStore) FavoritePhotoIDs(_ context.Context, userID string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []int64
	for photoID, users := range m.favorites {
		if users[userID] {
			ids = append(ids, photoID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memStore) AddFavorite(_ context.Context, photoID int64, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.favorites[photoID] == nil {
		m.favorites[photoID] = make(map[string]bool)
	}
	m.favorites[photoID][userID] = true
	return nil
}

func (m *memStore) RemoveFavorite(_ context.Context, photoID int64, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.favorites[photoID], userID)
	return nil
}

// --- UserRepo ---

func (m *memStore) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = *user
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &user, nil
}

func (m *memStore) GetByCode(_ context.Context, code string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.users {
		if user.Code == code {
			u := user
			return &u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memStore) CodeExists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.users {
		if user.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// fakeClock reports a fixed time that tests advance explicitly.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingNotifier captures change notifications.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []int64
}

func (n *recordingNotifier) LibraryChanged(_ *string, highWaterMark int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, highWaterMark)
}

func (n *recordingNotifier) Calls() []int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int64(nil), n.calls...)
}
