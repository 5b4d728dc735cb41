package domain

import (
	"strings"
	"time"
)

// GlobalConfigID is the primary key of the single global pricing row.
const GlobalConfigID int64 = 1

// GlobalConfig is the platform-wide rate triple.
type GlobalConfig struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"-"`
	Rates     Rates     `gorm:"embedded" json:"rates"`
	Version   int64     `gorm:"not null;default:0" json:"version"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (GlobalConfig) TableName() string { return "pricing_configs" }

// Override is an institution's own rate triple. It is never deleted; the
// resolver only reads it while Enabled is true.
type Override struct {
	InstitutionID string    `gorm:"primaryKey;type:varchar(64)" json:"institution_id"`
	Rates         Rates     `gorm:"embedded" json:"rates"`
	Enabled       bool      `gorm:"not null" json:"enabled"`
	Version       int64     `gorm:"not null;default:0" json:"version"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

func (Override) TableName() string { return "pricing_overrides" }

// Scope says whether a rate write targets the global triple or one
// institution's override.
type Scope string

const (
	ScopeGlobal      Scope = "global"
	ScopeInstitution Scope = "institution"
)

func (s Scope) Valid() bool {
	return s == ScopeGlobal || s == ScopeInstitution
}

// Target identifies the rate triple a write lands on.
type Target struct {
	Scope         Scope
	InstitutionID string
}

func GlobalTarget() Target {
	return Target{Scope: ScopeGlobal}
}

func InstitutionTarget(id string) Target {
	return Target{Scope: ScopeInstitution, InstitutionID: strings.TrimSpace(id)}
}

func (t Target) Validate() error {
	switch t.Scope {
	case ScopeGlobal:
		return nil
	case ScopeInstitution:
		if strings.TrimSpace(t.InstitutionID) == "" {
			return ErrInstitutionRequired
		}
		return nil
	default:
		return ErrInvalidScope
	}
}

// Key identifies the target for per-target serialisation.
func (t Target) Key() string {
	if t.Scope == ScopeGlobal {
		return string(ScopeGlobal)
	}
	return string(ScopeInstitution) + ":" + t.InstitutionID
}
