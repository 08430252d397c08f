package auth

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Directory is the fixed set of users allowed to sign in, keyed by username.
type Directory struct {
	hashes map[string][]byte

	dummyOnce sync.Once
	dummy     []byte
}

// NewDirectory builds a Directory from username to bcrypt hash pairs. Every hash must be a
// well-formed bcrypt hash.
func NewDirectory(users map[string]string) (*Directory, error) {
	hashes := make(map[string][]byte, len(users))
	for name, hash := range users {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("auth: empty username")
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("auth: user %q: %w", name, err)
		}
		hashes[name] = []byte(hash)
	}
	return &Directory{hashes: hashes}, nil
}

// ParseDirectory reads the "user:hash,user:hash" form used by AUTH_USERS.
func ParseDirectory(value string) (*Directory, error) {
	users := make(map[string]string)
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, hash, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("auth: entry %q is not username:hash", entry)
		}
		if _, dup := users[name]; dup {
			return nil, fmt.Errorf("auth: user %q listed twice", name)
		}
		users[name] = strings.TrimSpace(hash)
	}
	return NewDirectory(users)
}

// Len reports the number of known users.
func (d *Directory) Len() int {
	return len(d.hashes)
}

// Verify reports whether password matches the stored hash for username. Unknown users
// still pay for one bcrypt comparison.
func (d *Directory) Verify(username, password string) bool {
	hash, ok := d.hashes[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(d.dummyHash(), []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

func (d *Directory) dummyHash() []byte {
	d.dummyOnce.Do(func() {
		d.dummy, _ = bcrypt.GenerateFromPassword([]byte("odyssey-records"), bcrypt.DefaultCost)
	})
	return d.dummy
}
