package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/carshot/backend/internal/models"
	"github.com/google/uuid"
)

var (
	ErrNoActiveSession = errors.New("no active session")
	ErrPhotoNotFound   = errors.New("photo not found")
)

const activeSessionPrefix = "active_car_session:"

func activeSessionKey(userID string) string { return activeSessionPrefix + userID }
func completedSessionsKey(userID string) string {
	return "completed_sessions:" + userID
}

// creditDebiter is the slice of the credit ledger the session manager
// needs when completing a session.
type creditDebiter interface {
	UseCredit(ctx context.Context, userID string) (bool, SyncState, error)
}

// gallerySaver persists a finished photo into the user's gallery.
type gallerySaver interface {
	AddImage(ctx context.Context, ownerID, sourceURI string, meta models.GalleryMetadata, category string) (*models.GalleryImage, error)
}

// PhotoUpdate carries a partial photo change; nil fields are left as-is.
type PhotoUpdate struct {
	URI               *string `json:"uri,omitempty"`
	Processed         *bool   `json:"processed,omitempty"`
	BackgroundRemoved *bool   `json:"backgroundRemoved,omitempty"`
	BackgroundAdded   *bool   `json:"backgroundAdded,omitempty"`
	FinalImageURI     *string `json:"finalImageUri,omitempty"`
}

// BackgroundUpdate is one entry of a batch background application.
type BackgroundUpdate struct {
	ID              string `json:"id"`
	FinalImageURI   string `json:"finalImageUri"`
	BackgroundAdded bool   `json:"backgroundAdded"`
}

// SessionService manages the per-user active photo session and the
// archive of completed ones. Session records are JSON blobs in the
// key-value store; the whole record is rewritten on every mutation, so
// concurrent writers are serialized with a mutex and the last write
// wins.
type SessionService struct {
	kv      KVStore
	angles  *AngleService
	credits creditDebiter
	gallery gallerySaver
	remover BackgroundRemover

	mu sync.Mutex
}

func NewSessionService(kv KVStore, angles *AngleService, credits creditDebiter, gallery gallerySaver, remover BackgroundRemover) *SessionService {
	return &SessionService{
		kv:      kv,
		angles:  angles,
		credits: credits,
		gallery: gallery,
		remover: remover,
	}
}

// ActiveSession returns the user's current session, or nil when none
// exists.
func (s *SessionService) ActiveSession(ctx context.Context, userID string) (*models.CarSession, error) {
	raw, err := s.kv.Get(ctx, activeSessionKey(userID))
	if errors.Is(err, ErrKVNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session models.CarSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("corrupt session record: %w", err)
	}
	return &session, nil
}

// CreateSession starts a new session for the vehicle, replacing any
// existing active session.
func (s *SessionService) CreateSession(ctx context.Context, userID, dealershipID, carMake, carModel string, year int) (*models.CarSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	session := &models.CarSession{
		ID:           uuid.New().String(),
		UserID:       userID,
		DealershipID: dealershipID,
		CarMake:      strings.TrimSpace(carMake),
		CarModel:     strings.TrimSpace(carModel),
		Year:         year,
		Photos:       []models.CarPhoto{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// AddPhoto appends a capture to the active session.
func (s *SessionService) AddPhoto(ctx context.Context, userID, uri, angleID string) (*models.CarPhoto, error) {
	if _, err := s.angles.Get(angleID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.requireActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	photo := models.CarPhoto{
		ID:        uuid.New().String(),
		URI:       uri,
		AngleID:   angleID,
		CreatedAt: time.Now().UnixMilli(),
	}
	session.Photos = append(session.Photos, photo)
	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}
	return &photo, nil
}

// UpdatePhoto merges a partial update into one photo of the active
// session. Returns false when the photo does not exist.
func (s *SessionService) UpdatePhoto(ctx context.Context, userID, photoID string, upd PhotoUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.requireActive(ctx, userID)
	if err != nil {
		return false, err
	}

	idx := -1
	for i := range session.Photos {
		if session.Photos[i].ID == photoID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	p := &session.Photos[idx]
	if upd.URI != nil {
		p.URI = *upd.URI
	}
	if upd.Processed != nil {
		p.Processed = *upd.Processed
	}
	if upd.BackgroundRemoved != nil {
		p.BackgroundRemoved = *upd.BackgroundRemoved
	}
	if upd.BackgroundAdded != nil {
		p.BackgroundAdded = *upd.BackgroundAdded
	}
	if upd.FinalImageURI != nil {
		p.FinalImageURI = *upd.FinalImageURI
	}

	if err := s.persist(ctx, session); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateAllBackgrounds applies a batch of composited results in a single
// write. Updates referencing unknown photos are skipped.
func (s *SessionService) UpdateAllBackgrounds(ctx context.Context, userID string, updates []BackgroundUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.requireActive(ctx, userID)
	if err != nil {
		return false, err
	}

	byID := make(map[string]BackgroundUpdate, len(updates))
	for _, u := range updates {
		byID[u.ID] = u
	}

	changed := false
	for i := range session.Photos {
		u, ok := byID[session.Photos[i].ID]
		if !ok {
			continue
		}
		session.Photos[i].FinalImageURI = u.FinalImageURI
		session.Photos[i].BackgroundAdded = u.BackgroundAdded
		changed = true
	}
	if !changed {
		return false, nil
	}

	if err := s.persist(ctx, session); err != nil {
		return false, err
	}
	return true, nil
}

// CompleteSession finishes the active session: every exterior photo
// costs one credit and is saved to the gallery with vehicle metadata;
// interior photos are only marked processed. Individual photo failures
// are logged and never abort the batch. The session then moves to the
// completed archive and the active slot is cleared.
func (s *SessionService) CompleteSession(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.requireActive(ctx, userID)
	if err != nil {
		return false, err
	}

	category := strings.TrimSpace(fmt.Sprintf("%s %s", session.CarMake, session.CarModel))

	for i := range session.Photos {
		photo := &session.Photos[i]
		angle, angleErr := s.angles.Get(photo.AngleID)

		if angleErr == nil && angle.IsInterior {
			photo.Processed = true
			continue
		}

		ok, _, creditErr := s.credits.UseCredit(ctx, userID)
		if creditErr != nil {
			log.Printf("WARN: Credit debit errored for photo %s: %v", photo.ID, creditErr)
		} else if !ok {
			log.Printf("WARN: No credits left while completing session %s; photo %s saved without debit", session.ID, photo.ID)
		}

		uri := photo.FinalImageURI
		if uri == "" {
			uri = photo.URI
		}
		meta := models.GalleryMetadata{
			CarMake:   session.CarMake,
			CarModel:  session.CarModel,
			Year:      session.Year,
			AngleID:   photo.AngleID,
			AngleName: angle.Name,
			SessionID: session.ID,
		}
		if _, err := s.gallery.AddImage(ctx, userID, uri, meta, category); err != nil {
			log.Printf("ERROR: Failed to save photo %s to gallery: %v", photo.ID, err)
		}
		photo.Processed = true
	}

	session.Completed = true
	session.UpdatedAt = time.Now().UnixMilli()

	if err := s.archive(ctx, session); err != nil {
		log.Printf("ERROR: Failed to archive session %s: %v", session.ID, err)
	}
	if err := s.kv.Delete(ctx, activeSessionKey(session.UserID)); err != nil {
		return false, fmt.Errorf("failed to clear active session: %w", err)
	}
	return true, nil
}

// GetPhotosForAngle returns the active session's photos for one angle,
// in capture order. Without an active session the list is empty.
func (s *SessionService) GetPhotosForAngle(ctx context.Context, userID, angleID string) ([]models.CarPhoto, error) {
	session, err := s.ActiveSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	photos := []models.CarPhoto{}
	if session == nil {
		return photos, nil
	}
	for _, p := range session.Photos {
		if p.AngleID == angleID {
			photos = append(photos, p)
		}
	}
	return photos, nil
}

// HasAllRequiredAngles reports whether the session covers every angle a
// complete listing needs.
func (s *SessionService) HasAllRequiredAngles(session *models.CarSession) bool {
	if session == nil {
		return false
	}
	covered := make(map[string]bool, len(session.Photos))
	for _, p := range session.Photos {
		covered[p.AngleID] = true
	}
	for _, a := range s.angles.RequiredAngles() {
		if !covered[a.ID] {
			return false
		}
	}
	return true
}

// CompletedSessions returns the user's archive, most recent last.
func (s *SessionService) CompletedSessions(ctx context.Context, userID string) ([]models.CarSession, error) {
	raw, err := s.kv.Get(ctx, completedSessionsKey(userID))
	if errors.Is(err, ErrKVNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sessions []models.CarSession
	if err := json.Unmarshal(raw, &sessions); err != nil {
		return nil, fmt.Errorf("corrupt session archive: %w", err)
	}
	return sessions, nil
}

// ProcessPendingRemovals runs background removal over every active
// session's raw photos. Called from the worker loop; errors on a single
// photo are logged and the sweep continues.
func (s *SessionService) ProcessPendingRemovals(ctx context.Context) {
	if s.remover == nil {
		return
	}

	keys, err := s.kv.List(ctx, activeSessionPrefix)
	if err != nil {
		log.Printf("WARN: Could not list active sessions: %v", err)
		return
	}

	for _, key := range keys {
		userID := strings.TrimPrefix(key, activeSessionPrefix)
		s.processSessionRemovals(ctx, userID)
	}
}

func (s *SessionService) processSessionRemovals(ctx context.Context, userID string) {
	session, err := s.ActiveSession(ctx, userID)
	if err != nil || session == nil {
		return
	}

	for _, photo := range session.Photos {
		if photo.BackgroundRemoved || s.angles.IsInterior(photo.AngleID) {
			continue
		}

		processedURI, err := s.remover.RemoveBackground(ctx, photo.URI)
		if err != nil {
			log.Printf("WARN: Background removal failed for photo %s: %v", photo.ID, err)
			continue
		}

		removed := true
		processed := true
		if _, err := s.UpdatePhoto(ctx, userID, photo.ID, PhotoUpdate{
			URI:               &processedURI,
			BackgroundRemoved: &removed,
			Processed:         &processed,
		}); err != nil {
			log.Printf("WARN: Could not record removal for photo %s: %v", photo.ID, err)
		}
	}
}

func (s *SessionService) requireActive(ctx context.Context, userID string) (*models.CarSession, error) {
	session, err := s.ActiveSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrNoActiveSession
	}
	return session, nil
}

func (s *SessionService) persist(ctx context.Context, session *models.CarSession) error {
	session.UpdatedAt = time.Now().UnixMilli()
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.kv.Set(ctx, activeSessionKey(session.UserID), raw); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *SessionService) archive(ctx context.Context, session *models.CarSession) error {
	sessions, err := s.CompletedSessions(ctx, session.UserID)
	if err != nil {
		return err
	}
	sessions = append(sessions, *session)
	raw, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("failed to encode session archive: %w", err)
	}
	return s.kv.Set(ctx, completedSessionsKey(session.UserID), raw)
}
