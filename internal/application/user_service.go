package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/kabantay/kabantay-api/internal/domain/entity"
	repo "github.com/kabantay/kabantay-api/internal/domain/repository"
	"github.com/kabantay/kabantay-api/pkg/helpers"
	"github.com/kabantay/kabantay-api/pkg/mailer"
)

var (
	ErrEmailExists        = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Service orchestrates the account lifecycle: registration writes the
// user with its address and profile in one store transaction, lookups
// see only the active space, and soft deletion moves the record to the
// tombstone space. The service keeps no state of its own; all
// coordination goes through the document store.
type Service struct {
	Store        repo.DocumentStore
	Hasher       helpers.PasswordHasher
	NewID        helpers.IDGenerator
	JWT          *helpers.JWTManager
	Redis        *redis.Client
	Logger       *logrus.Logger
	ES           *elasticsearch.Client
	ESUsersIndex string
	GCS          *storage.Client
	GCSBucket    string
	Pub          *helpers.RabbitPublisher
	MailEnabled  bool
}

func NewService(store repo.DocumentStore, hasher helpers.PasswordHasher, newID helpers.IDGenerator, jwt *helpers.JWTManager, rdb *redis.Client, logger *logrus.Logger, es *elasticsearch.Client, esUsersIndex string, gcs *storage.Client, gcsBucket string, pub *helpers.RabbitPublisher, mailEnabled bool) *Service {
	return &Service{
		Store:        store,
		Hasher:       hasher,
		NewID:        newID,
		JWT:          jwt,
		Redis:        rdb,
		Logger:       logger,
		ES:           es,
		ESUsersIndex: esUsersIndex,
		GCS:          gcs,
		GCSBucket:    gcsBucket,
		Pub:          pub,
		MailEnabled:  mailEnabled,
	}
}

func activeFilters(extra ...repo.Filter) []repo.Filter {
	return append(extra, repo.Filter{Field: "isDeleted", Value: false})
}

func sessionKey(userID string) string {
	return "user:session:" + userID
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

type CreateUserInput struct {
	Email         string
	Password      string
	IsUserInGroup bool
	IsUserHead    bool
	Address       entity.Address
	Profile       entity.Profile
}

type CreateResult struct {
	UserID    string `json:"userId"`
	AddressID string `json:"addressId"`
	ProfileID string `json:"profileId"`
}

// Create registers a new account. The email uniqueness check against
// the active space and the three document writes run in a single store
// transaction, so two concurrent registrations with the same email
// cannot both commit, and no reader ever observes a partial triple.
func (s *Service) Create(ctx context.Context, in CreateUserInput) (*CreateResult, error) {
	// Hash outside the transaction; bcrypt is deliberately slow.
	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID := s.NewID()
	addressID := s.NewID()
	profileID := s.NewID()
	now := time.Now().UTC()

	user := entity.User{
		ID:            userID,
		Email:         in.Email,
		Password:      hash,
		IsUserInGroup: in.IsUserInGroup,
		IsUserHead:    in.IsUserHead,
		AddressID:     addressID,
		ProfileID:     profileID,
		IsDeleted:     false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.Store.RunAtomic(ctx, func(tx repo.Txn) error {
		existing, err := tx.Query(repo.CollectionUsers, activeFilters(repo.Filter{Field: "email", Value: in.Email})...)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return ErrEmailExists
		}
		tx.Set(repo.CollectionAddresses, addressID, in.Address)
		tx.Set(repo.CollectionProfiles, profileID, in.Profile)
		tx.Set(repo.CollectionUsers, userID, user)
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = s.indexUser(ctx, &user)
	s.recordActivity(ctx, "account", "created", userID, map[string]any{"email": in.Email})
	s.enqueueMail(ctx, in.Email, "welcome", map[string]any{
		"FirstName": in.Profile.FirstName,
		"Email":     in.Email,
	})

	return &CreateResult{UserID: userID, AddressID: addressID, ProfileID: profileID}, nil
}

// GetAll returns every active account.
func (s *Service) GetAll(ctx context.Context) ([]*entity.User, error) {
	docs, err := s.Store.Query(ctx, repo.CollectionUsers, activeFilters()...)
	if err != nil {
		return nil, err
	}
	users := make([]*entity.User, 0, len(docs))
	for _, doc := range docs {
		u := &entity.User{}
		if err := doc.DataTo(u); err != nil {
			return nil, err
		}
		u.ID = doc.ID()
		users = append(users, u)
	}
	return users, nil
}

// GetByEmail returns the unique active account for email, or
// ErrUserNotFound.
func (s *Service) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	docs, err := s.Store.Query(ctx, repo.CollectionUsers, activeFilters(repo.Filter{Field: "email", Value: email})...)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrUserNotFound
	}
	u := &entity.User{}
	if err := docs[0].DataTo(u); err != nil {
		return nil, err
	}
	u.ID = docs[0].ID()
	return u, nil
}

// GetByID returns the active account under id, or ErrUserNotFound.
func (s *Service) GetByID(ctx context.Context, id string) (*entity.User, error) {
	doc, err := s.Store.Get(ctx, repo.CollectionUsers, id)
	if err != nil {
		if errors.Is(err, repo.ErrDocNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u := &entity.User{}
	if err := doc.DataTo(u); err != nil {
		return nil, err
	}
	u.ID = doc.ID()
	return u, nil
}

type UpdateUserInput struct {
	Email         *string
	IsUserInGroup *bool
	IsUserHead    *bool
}

// UpdateByID merges the provided fields into the account. Password,
// address and profile are not mutable through this path. A change of
// email re-validates uniqueness in the same transaction that writes it.
func (s *Service) UpdateByID(ctx context.Context, id string, in UpdateUserInput) (*entity.User, error) {
	updated := &entity.User{}
	err := s.Store.RunAtomic(ctx, func(tx repo.Txn) error {
		doc, err := tx.Get(repo.CollectionUsers, id)
		if err != nil {
			if errors.Is(err, repo.ErrDocNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if err := doc.DataTo(updated); err != nil {
			return err
		}
		updated.ID = id

		if in.Email != nil && *in.Email != updated.Email {
			clash, err := tx.Query(repo.CollectionUsers, activeFilters(repo.Filter{Field: "email", Value: *in.Email})...)
			if err != nil {
				return err
			}
			if len(clash) > 0 {
				return ErrEmailExists
			}
			updated.Email = *in.Email
		}
		if in.IsUserInGroup != nil {
			updated.IsUserInGroup = *in.IsUserInGroup
		}
		if in.IsUserHead != nil {
			updated.IsUserHead = *in.IsUserHead
		}
		updated.UpdatedAt = time.Now().UTC()

		tx.Set(repo.CollectionUsers, id, updated)
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = s.indexUser(ctx, updated)
	return updated, nil
}

// Authenticate validates email/password against the active space. Both
// an unknown email and a wrong password return ErrInvalidCredentials so
// callers cannot probe which accounts exist.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	u, err := s.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.Hasher.Verify(password, u.Password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// IssueTokens generates access/refresh tokens and records a session in
// Redis. Token lifecycle beyond issuance belongs to the HTTP boundary.
func (s *Service) IssueTokens(ctx context.Context, u *entity.User) (TokenPair, error) {
	access, aexp, err := s.JWT.GenerateAccessToken(u.ID)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		}
		return TokenPair{}, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u.ID)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate refresh token failed")
		}
		return TokenPair{}, err
	}

	if s.Redis != nil {
		key := sessionKey(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, map[string]any{
			"user_id":    u.ID,
			"email":      u.Email,
			"logged_in":  true,
			"created_at": nowRFC3339(),
		})
		pipe.Expire(ctx, key, 24*time.Hour)
		if _, rErr := pipe.Exec(ctx); rErr != nil && s.Logger != nil {
			s.Logger.WithError(rErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}

	s.recordActivity(ctx, "auth", "login", u.ID, map[string]any{"email": u.Email})
	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

// Logout drops the Redis session for userID. Cookies are cleared by the
// HTTP boundary; without a session the auth middleware rejects the
// remaining access token.
func (s *Service) Logout(ctx context.Context, userID string) {
	if s.Redis != nil {
		if err := helpers.RedisDel(ctx, s.Redis, sessionKey(userID)); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", userID).Warn("session delete failed")
		}
	}
	s.recordActivity(ctx, "auth", "logout", userID, nil)
}

// ChangePassword rehashes and rotates the stored credential for the
// active account under email. Previously issued tokens stay valid;
// their lifecycle is owned by the HTTP boundary.
func (s *Service) ChangePassword(ctx context.Context, email, newPassword string) (string, error) {
	u, err := s.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	err = s.Store.Update(ctx, repo.CollectionUsers, u.ID, map[string]any{
		"password":  hash,
		"updatedAt": time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}

	s.recordActivity(ctx, "auth", "password_changed", u.ID, nil)
	s.enqueueMail(ctx, u.Email, "password_changed", map[string]any{"Email": u.Email})
	return u.ID, nil
}

// SoftDeleteByID moves an account to the tombstone space. The tombstone
// write, the live-record deletes and the address/profile cleanup commit
// in one transaction, so a crash cannot leave the record in both spaces
// or in neither. A missing id is a silent success with no write.
func (s *Service) SoftDeleteByID(ctx context.Context, id string) (string, error) {
	found := false
	err := s.Store.RunAtomic(ctx, func(tx repo.Txn) error {
		doc, err := tx.Get(repo.CollectionUsers, id)
		if err != nil {
			if errors.Is(err, repo.ErrDocNotFound) {
				return nil
			}
			return err
		}
		found = true

		u := entity.User{}
		if err := doc.DataTo(&u); err != nil {
			return err
		}
		u.ID = id

		tombstone := entity.DeletedUser{
			ID:            id,
			Email:         u.Email,
			Password:      u.Password,
			IsUserInGroup: u.IsUserInGroup,
			IsUserHead:    u.IsUserHead,
			AddressID:     u.AddressID,
			ProfileID:     u.ProfileID,
			IsDeleted:     true,
			CreatedAt:     u.CreatedAt,
			DeletedAt:     time.Now().UTC(),
		}

		// Embed copies of the owned records so deleting the live
		// documents loses no history.
		if addrDoc, err := tx.Get(repo.CollectionAddresses, u.AddressID); err == nil {
			addr := &entity.Address{}
			if err := addrDoc.DataTo(addr); err != nil {
				return err
			}
			addr.ID = u.AddressID
			tombstone.Address = addr
		} else if !errors.Is(err, repo.ErrDocNotFound) {
			return err
		}
		if profDoc, err := tx.Get(repo.CollectionProfiles, u.ProfileID); err == nil {
			prof := &entity.Profile{}
			if err := profDoc.DataTo(prof); err != nil {
				return err
			}
			prof.ID = u.ProfileID
			tombstone.Profile = prof
		} else if !errors.Is(err, repo.ErrDocNotFound) {
			return err
		}

		tx.Set(repo.CollectionDeletedUsers, id, tombstone)
		tx.Delete(repo.CollectionUsers, id)
		tx.Delete(repo.CollectionAddresses, u.AddressID)
		tx.Delete(repo.CollectionProfiles, u.ProfileID)
		return nil
	})
	if err != nil {
		return "", err
	}

	if found {
		_ = s.removeFromIndex(ctx, id)
		s.recordActivity(ctx, "account", "soft_deleted", id, nil)
	}
	return id, nil
}

// GetAllDeleted returns every tombstone in the deleted space.
func (s *Service) GetAllDeleted(ctx context.Context) ([]*entity.DeletedUser, error) {
	docs, err := s.Store.Query(ctx, repo.CollectionDeletedUsers)
	if err != nil {
		return nil, err
	}
	deleted := make([]*entity.DeletedUser, 0, len(docs))
	for _, doc := range docs {
		d := &entity.DeletedUser{}
		if err := doc.DataTo(d); err != nil {
			return nil, err
		}
		d.ID = doc.ID()
		deleted = append(deleted, d)
	}
	return deleted, nil
}

// UploadProfilePhoto stores a photo in GCS and records its public URL
// on the user's profile document.
func (s *Service) UploadProfilePhoto(ctx context.Context, userID string, r io.Reader, filename, contentType string) (string, error) {
	if s.GCS == nil || s.GCSBucket == "" {
		return "", errors.New("gcs not configured")
	}
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join("profiles", userID, s.NewID()+ext))
	url, err := helpers.UploadObject(ctx, s.GCS, s.GCSBucket, objectPath, contentType, r)
	if err != nil {
		return "", err
	}
	err = s.Store.Update(ctx, repo.CollectionProfiles, u.ProfileID, map[string]any{"photoUrl": url})
	if err != nil {
		return "", err
	}
	return url, nil
}

func (s *Service) indexUser(ctx context.Context, u *entity.User) error {
	if s.ES == nil || s.ESUsersIndex == "" {
		return nil
	}
	doc := map[string]any{
		"id":            u.ID,
		"email":         u.Email,
		"isUserInGroup": u.IsUserInGroup,
		"isUserHead":    u.IsUserHead,
		"created_at":    u.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":    u.UpdatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESUsersIndex, DocumentID: u.ID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
	}
	return nil
}

func (s *Service) removeFromIndex(ctx context.Context, id string) error {
	if s.ES == nil || s.ESUsersIndex == "" {
		return nil
	}
	req := esapi.DeleteRequest{Index: s.ESUsersIndex, DocumentID: id}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", id).Warn("es delete failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	return nil
}

// SearchUsers performs a simple multi_match search on indexed fields.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(s.ES.Search.WithContext(c), s.ES.Search.WithIndex(s.ESUsersIndex), s.ES.Search.WithBody(strings.NewReader(string(b))))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

// recordActivity appends an entry to the activity log collection.
// Logging is best-effort; a failed write never fails the operation it
// describes.
func (s *Service) recordActivity(ctx context.Context, class, typ, userID string, info map[string]any) {
	log := entity.ActivityLog{
		Class:        class,
		Type:         typ,
		OccurredAt:   time.Now().UTC(),
		UserID:       userID,
		ActivityInfo: info,
	}
	if err := s.Store.Set(ctx, repo.CollectionActivityLogs, s.NewID(), log); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", userID).Warn("activity log write failed")
	}
}

func (s *Service) enqueueMail(ctx context.Context, to, template string, data map[string]any) {
	if s.Pub == nil || !s.MailEnabled {
		return
	}
	job := mailer.EmailJob{To: to, Template: template, Data: data}
	if err := s.Pub.PublishJSON(ctx, job); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("template", template).Warn("enqueue mail failed")
	}
}
