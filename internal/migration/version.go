package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
)

type migrationFile struct {
	Version uint
	Name    string
	Body    []byte
}

// migrationSet is the embedded up migrations ordered by version.
type migrationSet []migrationFile

func loadMigrationSet() (migrationSet, error) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	var set migrationSet
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		version, ok := parseMigrationVersion(name)
		if !ok {
			return nil, fmt.Errorf("invalid migration filename: %s", name)
		}
		body, err := embeddedMigrations.ReadFile(migrationsDir + "/" + name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		set = append(set, migrationFile{Version: version, Name: name, Body: body})
	}
	if len(set) == 0 {
		return nil, errors.New("no embedded migrations found")
	}

	sort.Slice(set, func(i, j int) bool { return set[i].Version < set[j].Version })
	return set, nil
}

func (s migrationSet) Latest() uint {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].Version
}

// Checksum hashes names and bodies in version order.
func (s migrationSet) Checksum() string {
	hasher := sha256.New()
	for _, m := range s {
		_, _ = hasher.Write([]byte(m.Name))
		_, _ = hasher.Write([]byte{0})
		_, _ = hasher.Write(m.Body)
		_, _ = hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

// LatestMigrationVersion returns the highest embedded migration version.
func LatestMigrationVersion() (uint, error) {
	set, err := loadMigrationSet()
	if err != nil {
		return 0, err
	}
	return set.Latest(), nil
}

// MigrationsChecksum is a deterministic hash of the embedded up migrations.
func MigrationsChecksum() (string, error) {
	set, err := loadMigrationSet()
	if err != nil {
		return "", err
	}
	return set.Checksum(), nil
}

func parseMigrationVersion(name string) (uint, bool) {
	prefix, _, found := strings.Cut(name, "_")
	if !found || prefix == "" {
		return 0, false
	}
	parsed, err := strconv.ParseUint(prefix, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(parsed), true
}
