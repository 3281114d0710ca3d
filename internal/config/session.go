package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"mfg-report-go/internal/actionable"
	"mfg-report-go/internal/period"
	"mfg-report-go/internal/pivot"
	"mfg-report-go/internal/store"
)

var (
	ErrVersionConflict = errors.New("session version conflict")
	ErrUnknownProfile  = errors.New("unknown threshold profile")
)

const sessionKey = "session"

// Session is the saved dashboard state: the pivot layout, the active
// threshold profile and the reporting period. Version increases by one on
// every save.
type Session struct {
	Version int                 `json:"version"`
	Pivot   pivot.Spec          `json:"pivot"`
	Profile string              `json:"profile"`
	Custom  *actionable.Profile `json:"custom,omitempty"`
	Period  period.Period       `json:"period"`
}

func DefaultSession() Session {
	return Session{
		Pivot:   pivot.Spec{AggFunc: pivot.Sum},
		Profile: "standard",
	}
}

// Sessions loads and saves the Session through a store.Settings.
type Sessions struct {
	mu       sync.Mutex
	settings store.Settings
	profiles map[string]actionable.Profile
}

func NewSessions(settings store.Settings, profiles map[string]actionable.Profile) *Sessions {
	if profiles == nil {
		profiles = actionable.Presets()
	}
	return &Sessions{settings: settings, profiles: profiles}
}

// Load returns the saved session, or DefaultSession when nothing was saved.
func (s *Sessions) Load(ctx context.Context) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Sessions) load(ctx context.Context) (Session, error) {
	data, err := s.settings.LoadSetting(ctx, sessionKey)
	if errors.Is(err, store.ErrNotFound) {
		return DefaultSession(), nil
	}
	if err != nil {
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}

// Save stores next when next.Version matches the saved version and returns
// the stored value with its new version.
func (s *Sessions) Save(ctx context.Context, next Session) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.load(ctx)
	if err != nil {
		return Session{}, err
	}
	if next.Version != cur.Version {
		return cur, fmt.Errorf("%w: have %d, got %d", ErrVersionConflict, cur.Version, next.Version)
	}
	if err := next.Pivot.Validate(); err != nil {
		return cur, err
	}
	if next.Custom != nil {
		c := *next.Custom
		c.Name = actionable.CustomProfile
		if err := c.Validate(); err != nil {
			return cur, err
		}
	}
	if _, err := s.Profile(next); err != nil {
		return cur, err
	}

	next.Version = cur.Version + 1
	data, err := json.Marshal(next)
	if err != nil {
		return cur, fmt.Errorf("encode session: %w", err)
	}
	if err := s.settings.SaveSetting(ctx, sessionKey, data); err != nil {
		return cur, err
	}
	return next, nil
}

// Profile resolves the session's active threshold profile.
func (s *Sessions) Profile(sess Session) (actionable.Profile, error) {
	if sess.Profile == actionable.CustomProfile {
		if p, ok := actionable.Lookup(sess.Profile, sess.Custom); ok {
			return p, nil
		}
	} else if p, ok := s.profiles[sess.Profile]; ok {
		return p, nil
	}
	return actionable.Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, sess.Profile)
}

// Profiles returns the configured profiles.
func (s *Sessions) Profiles() map[string]actionable.Profile {
	out := make(map[string]actionable.Profile, len(s.profiles))
	for k, v := range s.profiles {
		out[k] = v
	}
	return out
}
