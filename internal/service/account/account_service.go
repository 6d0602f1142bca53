package account

import (
	"encoding/json"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/weiwangfds/photosync/config"
	"github.com/weiwangfds/photosync/internal/errors"
	"github.com/weiwangfds/photosync/internal/logger"
	"github.com/weiwangfds/photosync/internal/storage"
)

// usernameRe is the only shape a user-chosen name may take.
var usernameRe = regexp.MustCompile(`^[a-z0-9]{3,15}$`)

// reservedUsernames cannot be claimed by users.
var reservedUsernames = map[string]bool{
	"admin":        true,
	SystemUsername: true,
}

// Service is the account store.
type Service interface {
	// Create registers a new account and returns it. The username is
	// lowercased and validated; duplicates are a conflict.
	Create(username, fullname, password string) (*Account, error)

	// Authenticate verifies credentials and stamps the last login.
	// An unlocked account accepts any password once.
	Authenticate(username, password string) (*Account, error)

	// Get returns the account for username.
	Get(username string) (*Account, error)

	// List returns the public view of every account, sorted by name.
	List() []Info

	// SetAdmin toggles the admin flag.
	SetAdmin(username string, admin bool) error

	// SetUnlocked arms or disarms the password-check bypass.
	SetUnlocked(username string, unlocked bool) error

	// RecoverCredential decrypts the recoverable credential material,
	// used when migrating the hashing scheme.
	RecoverCredential(username string) (string, error)
}

type accountService struct {
	cfg   config.AuthConfig
	store *storage.JSONFile
	vault *credentialVault

	// mu serializes read-modify-write cycles over the accounts map and
	// the persisted file.
	mu       sync.Mutex
	accounts map[string]*Account
}

// NewService loads the account store, applies any pending schema
// upgrade and guarantees the system account exists.
func NewService(cfg config.AuthConfig, accountsFile string) (Service, error) {
	vault, err := loadOrCreateVault(cfg.IdentityFile)
	if err != nil {
		return nil, err
	}

	s := &accountService{
		cfg:      cfg,
		store:    storage.NewJSONFile(accountsFile),
		vault:    vault,
		accounts: make(map[string]*Account),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	logger.Infof("account store loaded: %d accounts", len(s.accounts))
	return s, nil
}

func (s *accountService) load() error {
	var doc persistedAccounts
	err := s.store.Load(&doc)
	switch {
	case os.IsNotExist(err):
		doc = persistedAccounts{Version: schemaVersion, Accounts: map[string]*Account{}}
	case err != nil:
		return err
	case doc.Accounts == nil:
		// Version 0 stores were a bare username→account map.
		if legacy, legacyErr := s.loadLegacy(); legacyErr == nil && len(legacy) > 0 {
			doc = persistedAccounts{Version: 0, Accounts: legacy}
		} else {
			doc = persistedAccounts{Version: schemaVersion, Accounts: map[string]*Account{}}
		}
	}

	upgraded := upgradeSchema(&doc)
	if _, ok := doc.Accounts[SystemUsername]; !ok {
		doc.Accounts[SystemUsername] = systemAccount()
		upgraded = true
	}
	s.accounts = doc.Accounts

	if upgraded || !s.store.Exists() {
		return s.persist()
	}
	return nil
}

// loadLegacy reads the pre-versioning document shape.
func (s *accountService) loadLegacy() (map[string]*Account, error) {
	data, err := os.ReadFile(s.store.Path())
	if err != nil {
		return nil, err
	}
	var legacy map[string]*Account
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, err
	}
	return legacy, nil
}

// upgradeSchema applies versioned upgrade steps once at load time and
// reports whether anything changed.
func upgradeSchema(doc *persistedAccounts) bool {
	if doc.Version >= schemaVersion {
		return false
	}
	for _, acc := range doc.Accounts {
		// v1: reserved collections became non-nil.
		if acc.Google == nil {
			acc.Google = []string{}
		}
		if acc.Metadata == nil {
			acc.Metadata = map[string]string{}
		}
		// v2: accounts gained a stable user id.
		if acc.UserID == "" {
			acc.UserID = uuid.NewString()
		}
	}
	logger.Infof("account store upgraded from schema v%d to v%d", doc.Version, schemaVersion)
	doc.Version = schemaVersion
	return true
}

func (s *accountService) persist() error {
	doc := persistedAccounts{Version: schemaVersion, Accounts: s.accounts}
	if err := s.store.Save(&doc); err != nil {
		return errors.Wrap(errors.ErrInternalServer, "failed to persist accounts", err)
	}
	return nil
}

func (s *accountService) Create(username, fullname, password string) (*Account, error) {
	username = strings.ToLower(username)

	if reservedUsernames[username] {
		return nil, errors.NewByCode(errors.ErrUsernameReserved)
	}
	if !usernameRe.MatchString(username) {
		return nil, errors.NewByCode(errors.ErrUsernameInvalid).
			WithDetails("usernames are 3-15 lowercase letters and digits")
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInternalServer, "failed to hash password", err)
	}
	encrypted, err := s.vault.encryptString(password)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInternalServer, "failed to encrypt credential", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[username]; exists {
		return nil, errors.NewByCode(errors.ErrAccountExists)
	}

	now := nowUnix()
	acc := &Account{
		Username:  username,
		Fullname:  fullname,
		Password:  hash,
		Encrypted: encrypted,
		UserID:    uuid.NewString(),
		Created:   now,
		LastLogin: now,
		Google:    []string{},
		Metadata:  map[string]string{},
	}
	s.accounts[username] = acc
	if err := s.persist(); err != nil {
		return nil, err
	}

	logger.Infof("account created: %s", username)
	clone := *acc
	return &clone, nil
}

func (s *accountService) Authenticate(username, password string) (*Account, error) {
	username = strings.ToLower(username)

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[username]
	if !ok || username == SystemUsername {
		return nil, errors.NewByCode(errors.ErrAccountNotFound)
	}

	if !verifyPassword(acc.Password, password) && !acc.Unlocked {
		return nil, errors.NewByCode(errors.ErrPasswordWrong)
	}
	// A recovery login burns the bypass.
	acc.Unlocked = false
	acc.LastLogin = nowUnix()
	if err := s.persist(); err != nil {
		return nil, err
	}

	clone := *acc
	return &clone, nil
}

func (s *accountService) Get(username string) (*Account, error) {
	username = strings.ToLower(username)

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[username]
	if !ok {
		return nil, errors.NewByCode(errors.ErrAccountNotFound)
	}
	clone := *acc
	return &clone, nil
}

func (s *accountService) List() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]Info, 0, len(s.accounts))
	for _, acc := range s.accounts {
		infos = append(infos, acc.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Username < infos[j].Username })
	return infos
}

func (s *accountService) SetAdmin(username string, admin bool) error {
	return s.mutate(username, func(acc *Account) { acc.Admin = admin })
}

func (s *accountService) SetUnlocked(username string, unlocked bool) error {
	return s.mutate(username, func(acc *Account) { acc.Unlocked = unlocked })
}

func (s *accountService) mutate(username string, fn func(*Account)) error {
	username = strings.ToLower(username)

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[username]
	if !ok {
		return errors.NewByCode(errors.ErrAccountNotFound)
	}
	fn(acc)
	return s.persist()
}

func (s *accountService) RecoverCredential(username string) (string, error) {
	acc, err := s.Get(username)
	if err != nil {
		return "", err
	}
	if acc.Encrypted == "" {
		return "", errors.NewByCode(errors.ErrNotFound).WithDetails("no recoverable credential")
	}
	return s.vault.decryptString(acc.Encrypted)
}
