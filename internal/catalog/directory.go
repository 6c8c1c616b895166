package catalog

import (
	"fmt"
	"net/mail"
	"strings"
	"sync"
)

// Registration holds the details for a new account.
// AdminLevel 0 registers a plain user.
type Registration struct {
	FirstName  string
	LastName   string
	Email      string
	Username   string
	Password   string
	AdminLevel int
}

// Directory owns the account collection. Every mutation is persisted before
// it is treated as committed; a failed save is rolled back in memory.
type Directory struct {
	store  Store
	hasher PasswordHasher
	clock  Clock
	tokens TokenGenerator
	logger Logger

	mu    sync.Mutex
	users []*User // ordered by ID
}

// OpenDirectory loads the users store and returns a ready Directory.
// A malformed store is returned as a *MalformedStoreError.
func OpenDirectory(store Store, hasher PasswordHasher, clock Clock, tokens TokenGenerator, logger Logger) (*Directory, error) {
	var doc usersDocument
	if _, err := store.Load(UsersStore, &doc); err != nil {
		return nil, asPersistenceError(UsersStore, "load", err)
	}
	users, err := doc.toUsers()
	if err != nil {
		return nil, &MalformedStoreError{Store: UsersStore, Err: err}
	}

	logger.Debug("directory loaded", "users", len(users))
	return &Directory{
		store:  store,
		hasher: hasher,
		clock:  clock,
		tokens: tokens,
		logger: logger,
		users:  users,
	}, nil
}

// Register validates and persists a new account.
func (d *Directory) Register(reg Registration) (*User, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	reg.Username = strings.TrimSpace(reg.Username)

	if addr, err := mail.ParseAddress(reg.Email); err != nil || addr.Address != reg.Email {
		return nil, &ValidationError{Field: "email", Err: ErrInvalidField}
	}
	if reg.Username == "" {
		return nil, &ValidationError{Field: "username", Err: ErrInvalidField}
	}
	if reg.AdminLevel < 0 || reg.AdminLevel > AdminLevelSuperAdmin {
		return nil, &ValidationError{Field: "admin_level", Err: ErrInvalidField}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, u := range d.users {
		if strings.EqualFold(u.Email, reg.Email) {
			return nil, &ValidationError{Field: "email", Err: ErrDuplicateEmail}
		}
		if strings.EqualFold(u.Username, reg.Username) {
			return nil, &ValidationError{Field: "username", Err: ErrDuplicateUsername}
		}
	}

	if err := ValidatePasswordStrength(reg.Password, reg.Username, reg.FirstName, reg.LastName); err != nil {
		return nil, err
	}

	digest, err := d.hasher.Hash(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		ID:           d.nextID(),
		FirstName:    strings.TrimSpace(reg.FirstName),
		LastName:     strings.TrimSpace(reg.LastName),
		Email:        reg.Email,
		Username:     reg.Username,
		PasswordHash: digest,
		CreatedAt:    d.clock.Now(),
	}
	if reg.AdminLevel > 0 {
		user.Admin = &AdminCapability{Level: reg.AdminLevel}
	}

	d.users = append(d.users, user)
	if err := d.persist(); err != nil {
		d.users = d.users[:len(d.users)-1]
		d.logger.Warn("registration rolled back", "username", user.Username, "error", err)
		return nil, err
	}

	d.logger.Info("user registered", "id", user.ID, "username", user.Username, "admin", user.Admin != nil)
	return user.clone(), nil
}

// Login checks the credentials and starts a session.
func (d *Directory) Login(email, password string) (*Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	user := d.findByEmail(strings.TrimSpace(email))
	if user == nil {
		return nil, &NotFoundError{Entity: "user", Key: email}
	}
	if !d.hasher.Verify(password, user.PasswordHash) {
		d.logger.Info("login failed", "user_id", user.ID)
		return nil, &ValidationError{Field: "password", Err: ErrBadCredentials}
	}

	if d.hasher.NeedsRehash(user.PasswordHash) {
		d.rehash(user, password)
	}

	sess := &Session{
		Token:     d.tokens.New(),
		StartedAt: d.clock.Now(),
		user:      user.clone(),
	}
	d.logger.Info("user logged in", "user_id", user.ID)
	return sess, nil
}

// rehash upgrades a legacy digest. Failure keeps the old digest; the login
// itself still succeeds.
func (d *Directory) rehash(user *User, password string) {
	digest, err := d.hasher.Hash(password)
	if err != nil {
		d.logger.Warn("password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	old := user.PasswordHash
	user.PasswordHash = digest
	if err := d.persist(); err != nil {
		user.PasswordHash = old
		d.logger.Warn("password rehash rolled back", "user_id", user.ID, "error", err)
		return
	}
	d.logger.Info("password digest upgraded", "user_id", user.ID)
}

// Logout ends the session. Ending an already-ended session is a no-op.
func (d *Directory) Logout(sess *Session) {
	if sess == nil {
		return
	}
	if sess.end() {
		d.logger.Info("user logged out", "user_id", sess.user.ID)
	}
}

// Promote grants the admin capability at level to an existing account.
// Only administrators may promote.
func (d *Directory) Promote(actor *User, userID int64, level int) (*User, error) {
	if !HasAdminCapability(actor) {
		return nil, &PermissionError{Action: "promote users", UserID: actorID(actor)}
	}
	if level < AdminLevelModerator || level > AdminLevelSuperAdmin {
		return nil, &ValidationError{Field: "admin_level", Err: ErrInvalidField}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	user := d.findByID(userID)
	if user == nil {
		return nil, &NotFoundError{Entity: "user", ID: userID}
	}
	if user.Admin != nil && user.Admin.Level == level {
		return user.clone(), nil
	}

	previous := user.Admin
	user.Admin = &AdminCapability{Level: level}
	if err := d.persist(); err != nil {
		user.Admin = previous
		d.logger.Warn("promotion rolled back", "user_id", userID, "error", err)
		return nil, err
	}

	d.logger.Info("user promoted", "user_id", userID, "level", level, "by", actor.ID)
	return user.clone(), nil
}

// ByID returns a copy of the account with the given ID.
func (d *Directory) ByID(id int64) (*User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u := d.findByID(id); u != nil {
		return u.clone(), true
	}
	return nil, false
}

// ByEmail returns a copy of the account with the given email, compared
// case-insensitively.
func (d *Directory) ByEmail(email string) (*User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u := d.findByEmail(strings.TrimSpace(email)); u != nil {
		return u.clone(), true
	}
	return nil, false
}

// Count returns the number of accounts.
func (d *Directory) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.users)
}

// All returns copies of every account in ID order.
func (d *Directory) All() []*User {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*User, len(d.users))
	for i, u := range d.users {
		out[i] = u.clone()
	}
	return out
}

func (d *Directory) nextID() int64 {
	var maxID int64
	for _, u := range d.users {
		if u.ID > maxID {
			maxID = u.ID
		}
	}
	return maxID + 1
}

func (d *Directory) findByID(id int64) *User {
	for _, u := range d.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (d *Directory) findByEmail(email string) *User {
	for _, u := range d.users {
		if strings.EqualFold(u.Email, email) {
			return u
		}
	}
	return nil
}

// persist must be called with d.mu held.
func (d *Directory) persist() error {
	if err := d.store.Save(UsersStore, newUsersDocument(d.users, d.clock.Now())); err != nil {
		return asPersistenceError(UsersStore, "save", err)
	}
	return nil
}

func actorID(u *User) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}
