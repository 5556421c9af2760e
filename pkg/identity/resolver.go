package identity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/plugboard/plugboard/pkg/observability"
	"github.com/plugboard/plugboard/pkg/store"
)

// ErrInvalidCredentials is returned for any local authentication
// failure: unknown email, wrong password, or a non-local account
// attempting password login. Callers must surface it as an
// authentication failure, never as a server error.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AttributeMap tells the resolver where to find identity attributes
// inside a provider's claim set. Each value is a dot-separated path
// into the (possibly nested) claims document.
type AttributeMap struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Email  string `json:"email" yaml:"email"`
	Groups string `json:"groups" yaml:"groups"`
}

// Resolver authenticates identities against the entity store and
// derives their effective permission set. It is safe for concurrent
// use; all state it touches lives in the store.
type Resolver struct {
	store        store.Store
	superAdminID string
	attributes   map[string]AttributeMap
	log          *logrus.Logger
	metrics      *observability.Metrics
}

// NewResolver creates a resolver. attributes maps identity-provider
// strategy ids to their claim attribute paths.
func NewResolver(st store.Store, superAdminID string, attributes map[string]AttributeMap, log *logrus.Logger) *Resolver {
	if log == nil {
		log = logrus.New()
	}
	if attributes == nil {
		attributes = map[string]AttributeMap{}
	}
	return &Resolver{
		store:        st,
		superAdminID: superAdminID,
		attributes:   attributes,
		log:          log,
	}
}

// SetMetrics attaches provisioning accounting. May be nil.
func (r *Resolver) SetMetrics(m *observability.Metrics) {
	r.metrics = m
}

// VerifyByCredentials authenticates a local-origin account by email and
// password. The super-administrator is returned as-is, with no role
// population; it is always fully privileged and role-less.
func (r *Resolver) VerifyByCredentials(ctx context.Context, email, password string) (*User, error) {
	rec, err := r.store.FindOne(ctx, usersCollection, store.Filter{
		"origin": OriginLocal,
		"email":  email,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	user := userFromRecord(rec)
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	if user.ID == r.superAdminID {
		return user, nil
	}
	if err := r.PopulateRoles(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// VerifyByClaims resolves a third-party-authenticated identity,
// provisioning it on first sight. It never fails with "unknown user":
// the provider already authenticated the subject. Store failures
// propagate unchanged.
func (r *Resolver) VerifyByClaims(ctx context.Context, claims map[string]interface{}, strategyID string) (*User, error) {
	attrs, ok := r.attributes[strategyID]
	if !ok {
		return nil, fmt.Errorf("no attribute mapping configured for strategy %q", strategyID)
	}

	originID := stringAt(claims, attrs.ID)
	if originID == "" {
		return nil, fmt.Errorf("strategy %q: claims carry no value at %q", strategyID, attrs.ID)
	}
	name := stringAt(claims, attrs.Name)
	email := stringAt(claims, attrs.Email)
	groups := groupsAt(claims, attrs.Groups)

	roleIDs, err := r.rolesForGroups(ctx, strategyID, groups)
	if err != nil {
		return nil, err
	}

	rec, err := r.store.FindOne(ctx, usersCollection, store.Filter{
		"origin":   strategyID,
		"originId": originID,
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	var user *User
	if errors.Is(err, store.ErrNotFound) {
		user = &User{
			ID:           uuid.NewString(),
			Name:         name,
			Email:        email,
			Origin:       strategyID,
			OriginID:     originID,
			OriginGroups: groups,
			RoleIDs:      roleIDs,
			Locked:       true,
		}
		if _, err := r.store.Insert(ctx, usersCollection, []store.Record{userToRecord(user)}); err != nil {
			return nil, err
		}
		if r.metrics != nil {
			r.metrics.UsersProvisionedTotal.Inc()
		}
		r.log.Infof("Provisioned user %s from strategy %s", user.ID, strategyID)
	} else {
		user = userFromRecord(rec)
		if patch := claimDrift(user, name, email, groups, roleIDs); len(patch) > 0 {
			if _, err := r.store.Update(ctx, usersCollection, store.Filter{"id": user.ID}, patch); err != nil {
				return nil, err
			}
			user.Name = name
			user.Email = email
			user.OriginGroups = groups
			user.RoleIDs = roleIDs
		}
	}

	if err := r.PopulateRoles(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UserByID loads a user and derives its permission set. The
// super-administrator is returned without role population.
func (r *Resolver) UserByID(ctx context.Context, id string) (*User, error) {
	rec, err := r.store.FindOne(ctx, usersCollection, store.Filter{"id": id})
	if err != nil {
		return nil, err
	}
	user := userFromRecord(rec)
	if user.ID == r.superAdminID {
		return user, nil
	}
	if err := r.PopulateRoles(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SuperAdminID returns the id of the always-privileged account.
func (r *Resolver) SuperAdminID() string { return r.superAdminID }

// PopulateRoles replaces the user's role id list with full Role records
// and sets Permissions to the deduplicated union of every role's leaf
// list. A user with no roles skips the store entirely.
func (r *Resolver) PopulateRoles(ctx context.Context, user *User) error {
	user.Permissions = []string{}
	user.Roles = nil
	if len(user.RoleIDs) == 0 {
		return nil
	}

	recs, err := r.store.Find(ctx, rolesCollection, store.Filter{"id": user.RoleIDs}, nil)
	if err != nil {
		return err
	}

	seen := map[string]bool{}
	for _, rec := range recs {
		role := roleFromRecord(rec)
		user.Roles = append(user.Roles, role)
		for _, p := range role.Permissions {
			if !seen[p] {
				seen[p] = true
				user.Permissions = append(user.Permissions, p)
			}
		}
	}
	sort.Strings(user.Permissions)
	return nil
}

// DeleteUsers removes the given accounts and notifies session-holding
// collaborators so active sessions can be force-invalidated.
func (r *Resolver) DeleteUsers(ctx context.Context, notifier *Notifier, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := r.store.Delete(ctx, usersCollection, store.Filter{"id": ids})
	if err != nil {
		return 0, err
	}
	if n > 0 && notifier != nil {
		notifier.UsersDeleted(ctx, ids)
	}
	return n, nil
}

// rolesForGroups unions the role ids configured for every claim group
// in this strategy's group mapping setting. Unmapped groups contribute
// nothing; a missing setting means no mapped roles at all.
func (r *Resolver) rolesForGroups(ctx context.Context, strategyID string, groups []string) ([]string, error) {
	rec, err := r.store.FindOne(ctx, settingsCollection, store.Filter{
		"id": "core-" + strategyID,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	mappings := groupMappingsFromRecord(rec)
	inGroups := map[string]bool{}
	for _, g := range groups {
		inGroups[g] = true
	}

	var out []string
	seen := map[string]bool{}
	for _, m := range mappings {
		if !inGroups[m.Group] {
			continue
		}
		for _, role := range m.Roles {
			if !seen[role] {
				seen[role] = true
				out = append(out, role)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func groupMappingsFromRecord(rec store.Record) []GroupRoleMapping {
	raw, ok := rec["value"].([]interface{})
	if !ok {
		return nil
	}
	var out []GroupRoleMapping
	for _, item := range raw {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		m := GroupRoleMapping{Group: store.Record(entry).GetString("group")}
		m.Roles = store.Record(entry).GetStringSlice("roles")
		out = append(out, m)
	}
	return out
}

// claimDrift compares the stored user against claim-derived values and
// returns the patch of fields that changed. Array fields compare as
// sets. An empty patch means repeated logins cause no writes.
func claimDrift(user *User, name, email string, groups, roleIDs []string) store.Record {
	patch := store.Record{}
	if user.Name != name {
		patch["name"] = name
	}
	if user.Email != email {
		patch["email"] = email
	}
	if !sameSet(user.OriginGroups, groups) {
		patch["originGroups"] = groups
	}
	if !sameSet(user.RoleIDs, roleIDs) {
		patch["roles"] = roleIDs
	}
	return patch
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := map[string]int{}
	for _, s := range a {
		set[s]++
	}
	for _, s := range b {
		set[s]--
		if set[s] < 0 {
			return false
		}
	}
	return true
}

// stringAt extracts a string from claims at a dot-separated path.
func stringAt(claims map[string]interface{}, path string) string {
	v := valueAt(claims, path)
	s, _ := v.(string)
	return s
}

// groupsAt extracts a group list. Providers differ: some send an
// array, some a single comma-separated string.
func groupsAt(claims map[string]interface{}, path string) []string {
	switch v := valueAt(claims, path).(type) {
	case nil:
		return []string{}
	case string:
		if v == "" {
			return []string{}
		}
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

func valueAt(claims map[string]interface{}, path string) interface{} {
	if path == "" {
		return nil
	}
	var cur interface{} = claims
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}
