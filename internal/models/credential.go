package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/boltdb/bolt"
	"github.com/google/uuid"
)

// AuthMode selects how requests to a WordPress site are authenticated.
type AuthMode string

const (
	AuthBasic               AuthMode = "basicAuth"
	AuthOAuth2              AuthMode = "oauth2"
	AuthApplicationPassword AuthMode = "applicationPassword"
)

// Valid reports whether m is one of the known authentication modes.
func (m AuthMode) Valid() bool {
	switch m {
	case AuthBasic, AuthOAuth2, AuthApplicationPassword:
		return true
	}
	return false
}

// Credential represents a user-configured WordPress site.
type Credential struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	BaseURL        string   `json:"base_url"`
	Authentication AuthMode `json:"authentication"`
	Username       string   `json:"username,omitempty"`
	Password       string   `json:"password,omitempty"`
	// OAuth2 fields are stored but no request path reads them.
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	Insecure     bool   `json:"insecure"` // skip TLS verification
	CACert       string `json:"ca_cert,omitempty"`

	PingStatus  string     `json:"ping_status"`
	PingError   string     `json:"ping_error,omitempty"`
	AuthStatus  string     `json:"auth_status"`
	AuthError   string     `json:"auth_error,omitempty"`
	LastChecked *time.Time `json:"last_checked,omitempty"`
}

// RESTRoot returns the wp/v2 REST root for this credential. The base URL is
// used verbatim apart from a single trailing slash.
func (c *Credential) RESTRoot() string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/wp-json/wp/v2"
}

// SiteRoot returns the /wp-json/ index URL for this credential.
func (c *Credential) SiteRoot() string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/wp-json/"
}

// Mode returns the authentication mode, defaulting to basic auth.
func (c *Credential) Mode() AuthMode {
	if c.Authentication == "" {
		return AuthBasic
	}
	return c.Authentication
}

// UsesBasicAuth reports whether requests carry an Authorization: Basic header.
func (c *Credential) UsesBasicAuth() bool {
	m := c.Mode()
	return m == AuthBasic || m == AuthApplicationPassword
}

// MaskedPassword returns a fixed mask for a non-empty password.
func (c *Credential) MaskedPassword() string {
	if c.Password == "" {
		return ""
	}
	return "••••••••"
}

// Masked returns a copy safe to hand back over the API.
func (c *Credential) Masked() Credential {
	out := *c
	out.Password = c.MaskedPassword()
	if out.ClientSecret != "" {
		out.ClientSecret = "••••••••"
	}
	return out
}

// Validate checks the fields a credential needs before any request is made.
func (c *Credential) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("base_url is required")
	}
	if !c.Mode().Valid() {
		return fmt.Errorf("unknown authentication %q", c.Authentication)
	}
	return nil
}

const credentialBucket = "credentials"

// CredentialStore is a thread-safe store for credentials. When opened with a
// database file every change is written through to BoltDB.
type CredentialStore struct {
	mu    sync.RWMutex
	creds map[string]*Credential
	db    *bolt.DB
}

// NewCredentialStore creates an empty in-memory credential store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{creds: make(map[string]*Credential)}
}

// OpenCredentialStore opens (or creates) a BoltDB file and loads every
// credential stored in it.
func OpenCredentialStore(path string) (*CredentialStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	s := &CredentialStore{creds: make(map[string]*Credential), db: db}
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(credentialBucket))
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			var c Credential
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("decoding credential %s: %w", k, err)
			}
			s.creds[c.ID] = &c
			return nil
		})
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database file, if any.
func (s *CredentialStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *CredentialStore) persist(c *Credential) error {
	if s.db == nil {
		return nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(credentialBucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(c.ID), data)
	})
}

func (s *CredentialStore) remove(id string) error {
	if s.db == nil {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(credentialBucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(id))
	})
}

// Create adds a new credential, assigning it a UUID. The credential is only
// registered once it has been written to the database.
func (s *CredentialStore) Create(c *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = uuid.New().String()
	if c.PingStatus == "" {
		c.PingStatus = "unknown"
	}
	if c.AuthStatus == "" {
		c.AuthStatus = "unknown"
	}
	if err := s.persist(c); err != nil {
		return err
	}
	s.creds[c.ID] = c
	return nil
}

// Get returns a credential by ID, or nil if not found.
func (s *CredentialStore) Get(id string) *Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds[id]
}

// FindByName returns the first credential with the given name, or nil.
func (s *CredentialStore) FindByName(name string) *Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.creds {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// List returns all credentials.
func (s *CredentialStore) List() []*Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Credential, 0, len(s.creds))
	for _, c := range s.creds {
		result = append(result, c)
	}
	return result
}

// Update replaces an existing credential's settings.
func (s *CredentialStore) Update(c *Credential) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.creds[c.ID]; !ok {
		return false, nil
	}
	if err := s.persist(c); err != nil {
		return true, err
	}
	s.creds[c.ID] = c
	return true, nil
}

// Delete removes a credential by ID.
func (s *CredentialStore) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.creds[id]; !ok {
		return false, nil
	}
	if err := s.remove(id); err != nil {
		return true, err
	}
	delete(s.creds, id)
	return true, nil
}

// SetHealth records the outcome of a reachability and auth check. Stored
// credentials are never modified in place, so pointers handed out by Get and
// List stay safe to read while a check lands.
func (s *CredentialStore) SetHealth(id, pingStatus, pingError, authStatus, authError string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[id]
	if !ok {
		return
	}
	now := time.Now()
	cp := *c
	cp.PingStatus = pingStatus
	cp.PingError = pingError
	cp.AuthStatus = authStatus
	cp.AuthError = authError
	cp.LastChecked = &now
	s.creds[id] = &cp
}
