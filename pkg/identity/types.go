package identity

import (
	"github.com/plugboard/plugboard/pkg/access"
	"github.com/plugboard/plugboard/pkg/store"
)

// OriginLocal marks accounts created by an administrator with a
// password, as opposed to accounts provisioned from a third-party
// identity provider, whose origin is the provider's strategy id.
const OriginLocal = "local"

// Store collections used by the resolver.
const (
	usersCollection    = "users"
	rolesCollection    = "roles"
	settingsCollection = "settings"
)

// User is an authenticated account. Permissions is derived on every
// resolution from the user's roles and is never persisted.
type User struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Origin       string   `json:"origin"`
	OriginID     string   `json:"originId,omitempty"`
	OriginGroups []string `json:"originGroups,omitempty"`
	RoleIDs      []string `json:"roles"`
	Roles        []*Role  `json:"-"`
	Permissions  []string `json:"permissions"`
	Locked       bool     `json:"locked"`
	PasswordHash string   `json:"-"`
}

// Role maps a name to the permission leaf ids it grants.
type Role struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// GroupRoleMapping binds one third-party group name to the roles its
// members receive. Administrators configure a list of these per
// identity-provider strategy.
type GroupRoleMapping struct {
	Group string   `json:"group"`
	Roles []string `json:"roles"`
}

// AccessIdentity converts a resolved user into the shape the decision
// engine consumes.
func (u *User) AccessIdentity() *access.Identity {
	if u == nil {
		return nil
	}
	return &access.Identity{
		ID:          u.ID,
		Permissions: u.Permissions,
		Locked:      u.Locked,
	}
}

func userFromRecord(rec store.Record) *User {
	return &User{
		ID:           rec.GetString("id"),
		Name:         rec.GetString("name"),
		Email:        rec.GetString("email"),
		Origin:       rec.GetString("origin"),
		OriginID:     rec.GetString("originId"),
		OriginGroups: rec.GetStringSlice("originGroups"),
		RoleIDs:      rec.GetStringSlice("roles"),
		Locked:       rec.GetBool("locked"),
		PasswordHash: rec.GetString("passwordHash"),
	}
}

func userToRecord(u *User) store.Record {
	return store.Record{
		"id":           u.ID,
		"name":         u.Name,
		"email":        u.Email,
		"origin":       u.Origin,
		"originId":     u.OriginID,
		"originGroups": u.OriginGroups,
		"roles":        u.RoleIDs,
		"locked":       u.Locked,
		"passwordHash": u.PasswordHash,
	}
}

func roleFromRecord(rec store.Record) *Role {
	return &Role{
		ID:          rec.GetString("id"),
		Name:        rec.GetString("name"),
		Permissions: rec.GetStringSlice("permissions"),
	}
}
