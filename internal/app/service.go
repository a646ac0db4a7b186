package app

import (
	"context"
	"io"
	"log"
	"net/url"
	"strings"
	"time"

	"mosaic/api/internal/archive"
	"mosaic/api/internal/auth"
	"mosaic/api/internal/authpw"
	"mosaic/api/internal/config"
	"mosaic/api/internal/email"
	"mosaic/api/internal/export"
	"mosaic/api/internal/mention"
	"mosaic/api/internal/search"
	"mosaic/api/internal/store"
	"mosaic/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Relation     string
	Trusted      bool
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	Ping(ctx context.Context) error

	EnsureUserByName(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)

	InsertPerson(context.Context, store.Person) error
	GetPerson(context.Context, string) (store.Person, error)
	GetPersonClaimedBy(context.Context, string) (store.Person, error)
	FindPersonByName(context.Context, string) (store.Person, error)
	UpdatePersonName(context.Context, string, string) error
	UpdatePersonBaseVisibility(context.Context, string, string) error
	ClaimPerson(context.Context, string, string) error
	InsertAlias(context.Context, string, string) error
	GetAliasesForPeople(context.Context, []string) (map[string][]string, error)
	GetPersonsByIDs(context.Context, []string) (map[string]store.Person, error)

	InsertReference(context.Context, store.EventReference) error
	GetReference(context.Context, string) (store.EventReference, error)
	ListReferencesByEvents(context.Context, []string) (map[string][]store.EventReference, error)
	ListReferencesByPerson(context.Context, string) ([]store.EventReference, error)
	UpdateReferenceOverride(context.Context, string, string) error

	UpsertPreference(context.Context, string, string, string) error
	DeletePreference(context.Context, string, string) error
	GetPreferences(context.Context, string) (store.PreferenceSet, error)
	GetPreferencesForPeople(context.Context, []string) (map[string]store.PreferenceSet, error)
	ListAuthorPreferences(context.Context, string) ([]store.VisibilityPreference, map[string]store.User, error)

	InsertMention(context.Context, store.Mention) error
	ListMentionsByEvents(context.Context, []string) (map[string][]store.Mention, error)

	InsertEvent(context.Context, store.Event) error
	UpdateEventBody(context.Context, string, string, string) error
	UpdateEventMaskedText(context.Context, string, string, string) error
	DeleteEvent(context.Context, string) error
	GetEvent(context.Context, string) (store.Event, error)
	GetEventsByIDs(context.Context, []string) (map[string]store.Event, error)
	ListEvents(context.Context, int, int) ([]store.Event, error)

	InsertAttachment(context.Context, store.Attachment) error
	GetAttachment(context.Context, string) (store.Attachment, error)
	ListAttachmentsByEvent(context.Context, string) ([]store.Attachment, error)
	DeleteAttachment(context.Context, string) error
}

// sessionStore holds refresh tokens. Redis in production, Postgres as a
// fallback when Redis is not configured.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type archiveService interface {
	EnsureEventRepo(eventID string, initial archive.Revision, author string) error
	SaveRevision(eventID string, rev archive.Revision, author, message string) (store.CommitInfo, error)
	Head(eventID string) (archive.Revision, store.CommitInfo, error)
	RevisionAt(eventID, hash string) (archive.Revision, error)
	History(eventID string, limit int) ([]store.CommitInfo, error)
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexNote(n search.NoteRecord)
	DeleteNote(id string)
}

type mediaService interface {
	Put(ctx context.Context, eventID, attachmentID, filename, contentType string, body io.Reader, size int64) (string, error)
	PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	archive  archiveService
	search   searchService
	media    mediaService
	detector mention.Detector

	authpw   *authpw.Service
	email    *email.Service
	exporter *export.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, archiveSvc *archive.Service, searchSvc *search.Service) *Service {
	return newService(cfg, dataStore, dataStore, archiveSvc, searchSvc)
}

func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions sessionStore, archiveSvc *archive.Service, searchSvc *search.Service) *Service {
	return newService(cfg, dataStore, sessions, archiveSvc, searchSvc)
}

func newService(cfg config.Config, st dataStore, sessions sessionStore, archiveSvc *archive.Service, searchSvc *search.Service) *Service {
	s := &Service{
		cfg:      cfg,
		store:    st,
		sessions: sessions,
		detector: mention.NewRegexDetector(),
	}
	if archiveSvc != nil {
		s.archive = archiveSvc
	}
	if searchSvc != nil {
		s.search = searchSvc
	}
	s.exporter = export.NewService(s)
	return s
}

// SetAuthServices wires email/password authentication and its mailer.
func (s *Service) SetAuthServices(authSvc *authpw.Service, emailSvc *email.Service) {
	s.authpw = authSvc
	s.email = emailSvc
}

// SetMedia wires the attachment object store.
func (s *Service) SetMedia(m mediaService) {
	s.media = m
}

// AuthPasswordService returns the configured password auth service, or nil.
func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

// EmailService returns the configured mailer, or nil.
func (s *Service) EmailService() *email.Service {
	return s.email
}

// SMTPConfigured reports whether outbound email can be sent.
func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

// DeliverVerificationMail sends the signup verification link. Best effort;
// a delivery failure must not fail the signup that triggered it.
func (s *Service) DeliverVerificationMail(to, userName, token string) {
	if !s.SMTPConfigured() {
		return
	}
	link := s.cfg.AppBaseURL + "/verify-email?token=" + url.QueryEscape(token)
	if err := s.email.SendVerificationEmail(to, userName, link); err != nil {
		log.Printf("email: verification to %s: %v", to, err)
	}
}

// DeliverPasswordResetMail sends a reset link for an existing account.
func (s *Service) DeliverPasswordResetMail(to, token string) {
	if !s.SMTPConfigured() || token == "" {
		return
	}
	link := s.cfg.AppBaseURL + "/reset-password?token=" + url.QueryEscape(token)
	if err := s.email.SendPasswordResetEmail(to, to, link); err != nil {
		log.Printf("email: password reset to %s: %v", to, err)
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Login is the development name-only login used when password auth is not
// configured. It provisions the contributor row on first use.
func (s *Service) Login(ctx context.Context, name string) (Session, error) {
	userName := strings.TrimSpace(name)
	if userName == "" {
		userName = "User"
	}

	user, err := s.store.EnsureUserByName(ctx, userName)
	if err != nil {
		return Session{}, err
	}

	return s.issueSession(ctx, user)
}

// CreateSession issues a session for an already-authenticated contributor.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	found, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// The Redis backend stores only the user id; re-read the full row.
	user, err := s.store.GetUserByID(ctx, found.ID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:     user.ID,
		Name:    user.DisplayName,
		Trusted: user.Trusted,
		JTI:     jti,
		Exp:     expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Relation:     user.Relation,
		Trusted:      user.Trusted,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Relation:  user.Relation,
		Trusted:   user.Trusted,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}
