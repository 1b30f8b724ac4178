package authn

import (
	"bufio"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100000
	pbkdf2KeyLength  = 32
	saltLength       = 32
)

// VerifierDB is the bootstrap credential store: one "user:salt:verifier"
// line per user, verifier = hex(PBKDF2-HMAC-SHA256(password, salt)).
// Lookups at serve time are read-only; user management rewrites the file
// atomically.
type VerifierDB struct {
	logger *logrus.Entry
	path   string

	mu    sync.RWMutex
	users map[string]verifierEntry
}

type verifierEntry struct {
	salt     string
	verifier string
}

func NewVerifierDB(logger *logrus.Entry, path string) (*VerifierDB, error) {
	db := &VerifierDB{
		logger: logger,
		path:   path,
		users:  map[string]verifierEntry{},
	}

	if err := db.load(); err != nil {
		return nil, fmt.Errorf("could not load verifier database: %w", err)
	}

	logger.Infof("loaded %d bootstrap user(s) from %s", len(db.users), path)
	return db, nil
}

func (db *VerifierDB) load() error {
	f, err := os.Open(db.path)
	if os.IsNotExist(err) {
		db.logger.Warnf("verifier database %s does not exist. starting empty", db.path)
		return nil
	} else if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ":")
		if len(parts) < 3 {
			db.logger.Warnf("skipping malformed verifier line")
			continue
		}

		db.users[parts[0]] = verifierEntry{salt: parts[1], verifier: parts[2]}
	}

	return scanner.Err()
}

// Verify checks a username/password pair against the stored verifier using
// a constant time comparison. Unknown users and bad passwords are
// indistinguishable to the caller.
func (db *VerifierDB) Verify(username, password string) bool {
	db.mu.RLock()
	entry, ok := db.users[username]
	db.mu.RUnlock()

	if !ok {
		return false
	}

	computed := hex.EncodeToString(deriveVerifier(password, entry.salt))
	return hmac.Equal([]byte(computed), []byte(entry.verifier))
}

func (db *VerifierDB) AddUser(username, password string) error {
	if strings.Contains(username, ":") {
		return fmt.Errorf("username must not contain ':'")
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.users[username]; exists {
		return fmt.Errorf("user %s already exists", username)
	}

	saltBytes := make([]byte, saltLength)
	if _, err := rand.Read(saltBytes); err != nil {
		return err
	}
	salt := hex.EncodeToString(saltBytes)

	db.users[username] = verifierEntry{
		salt:     salt,
		verifier: hex.EncodeToString(deriveVerifier(password, salt)),
	}

	return db.flush()
}

func (db *VerifierDB) RemoveUser(username string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.users[username]; !exists {
		return fmt.Errorf("user %s does not exist", username)
	}

	delete(db.users, username)
	return db.flush()
}

func (db *VerifierDB) ListUsers() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	users := make([]string, 0, len(db.users))
	for username := range db.users {
		users = append(users, username)
	}
	return users
}

// flush rewrites the verifier file through a temp file and rename so a
// crash mid-write never corrupts the database. Callers hold db.mu.
func (db *VerifierDB) flush() error {
	if err := os.MkdirAll(filepath.Dir(db.path), 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(db.path), ".verifiers-*")
	if err != nil {
		return err
	}

	for username, entry := range db.users {
		if _, err := fmt.Fprintf(tmp, "%s:%s:%s\n", username, entry.salt, entry.verifier); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return err
		}
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), db.path)
}

func deriveVerifier(password, salt string) []byte {
	return pbkdf2.Key([]byte(password), []byte(salt), pbkdf2Iterations, pbkdf2KeyLength, sha256.New)
}
