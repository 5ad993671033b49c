package models

import (
	"strconv"
	"time"
)

// PublicDirName is the directory the shared public scope maps to on disk.
// In the database the public scope is represented by a NULL owner.
const PublicDirName = "public"

// User represents a user in the system
type User struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

// Photo is a single library entry. The (Owner, Folder, Name) triple is the
// photo's path identity: it must be unique and determines where the file
// lives on disk. A nil Owner means the shared public scope.
type Photo struct {
	ID        int64      `json:"id"`
	Owner     *string    `json:"owner,omitempty"`
	Name      string     `json:"name"`
	Folder    *string    `json:"folder,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	FileSize  int64      `json:"file_size"`
	ThumbHash []byte     `json:"thumb_hash,omitempty"`
	TrashedOn *time.Time `json:"trashed_on,omitempty"`
}

// FullName returns the path-identity key relative to the owner directory:
// "folder/name" when a non-empty folder is set, plain "name" otherwise.
// It is computed on demand and never cached, so renames cannot leave a
// stale key behind.
func (p *Photo) FullName() string {
	return FullName(p.Name, p.Folder)
}

// PartialPath returns the photo's location relative to the photos root.
func (p *Photo) PartialPath() string {
	return OwnerDir(p.Owner) + "/" + p.FullName()
}

// PreviewName returns the file name of the photo's rendered preview.
func (p *Photo) PreviewName() string {
	return PreviewName(p.ID)
}

// FullName builds a path-identity key from its parts.
func FullName(name string, folder *string) string {
	if folder != nil && *folder != "" {
		return *folder + "/" + name
	}
	return name
}

// OwnerDir returns the directory name an owner scope maps to.
func OwnerDir(owner *string) string {
	if owner == nil {
		return PublicDirName
	}
	return *owner
}

// PreviewName returns the preview file name for a photo id.
func PreviewName(photoID int64) string {
	return strconv.FormatInt(photoID, 10) + ".jpg"
}

// EventLogEntry is one immutable record of the append-only event log.
// Data carries the full JSON snapshot of the photo at the time of the
// event; a nil Data signals that the photo was deleted.
type EventLogEntry struct {
	EventID int64  `json:"event_id"`
	PhotoID int64  `json:"photo_id"`
	Data    []byte `json:"data,omitempty"`
}

// PhotoHash maps a photo id to the truncated digest of its file bytes.
type PhotoHash struct {
	PhotoID int64
	Hash    []byte
}

// PhotoThumbHash pairs a photo id with its computed thumb hash.
type PhotoThumbHash struct {
	PhotoID   int64
	ThumbHash []byte
}

// FullSnapshot is the response of a full sync: the current high-water mark
// and every active photo visible to the requesting owner.
type FullSnapshot struct {
	HighWaterMark int64   `json:"high_water_mark"`
	Photos        []Photo `json:"photos"`
}

// ChangeSet is the response of an incremental sync.
type ChangeSet struct {
	HighWaterMark int64           `json:"high_water_mark"`
	Events        []EventLogEntry `json:"events"`
}

// ErrorResponse is the error envelope every API layer writes.
type ErrorResponse struct {
	Error string `json:"error"`
}
