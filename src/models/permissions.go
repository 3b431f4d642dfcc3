package models

import (
	"fmt"
	"strings"
	"time"
)

// PermissionFlags is the access a user holds on a depot.
type PermissionFlags uint8

const (
	PermissionRead PermissionFlags = 1 << iota
	PermissionWrite
	PermissionOwn

	PermissionAll = PermissionRead | PermissionWrite | PermissionOwn
)

var permissionNames = []struct {
	flag PermissionFlags
	name string
}{
	{PermissionRead, "read"},
	{PermissionWrite, "write"},
	{PermissionOwn, "own"},
}

// Has reports whether every bit of want is set.
func (f PermissionFlags) Has(want PermissionFlags) bool {
	return want != 0 && f&want == want
}

func (f PermissionFlags) Names() []string {
	names := []string{}
	for _, p := range permissionNames {
		if f&p.flag != 0 {
			names = append(names, p.name)
		}
	}
	return names
}

func (f PermissionFlags) String() string {
	if f == 0 {
		return "none"
	}
	return strings.Join(f.Names(), "|")
}

// ParsePermissionFlags turns names like "read" or "write" into flags.
func ParsePermissionFlags(names []string) (PermissionFlags, error) {
	var flags PermissionFlags
	for _, name := range names {
		found := false
		for _, p := range permissionNames {
			if strings.EqualFold(strings.TrimSpace(name), p.name) {
				flags |= p.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown permission %q", name)
		}
	}
	return flags, nil
}

type Permission struct {
	ID        uint            `gorm:"primaryKey;column:id" json:"id"`
	UserID    uint            `gorm:"column:user_id;not null;uniqueIndex:idx_permission_user_depot" json:"user_id"`
	DepotID   uint            `gorm:"column:depot_id;not null;uniqueIndex:idx_permission_user_depot;index" json:"depot_id"`
	Flags     PermissionFlags `gorm:"column:flags;not null" json:"flags"`
	User      User            `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Depot     Depot           `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Permission) TableName() string {
	return "permissions"
}
