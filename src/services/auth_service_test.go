package services_test

import (
	"strings"
	"testing"

	"depotbook/src/models"
	"depotbook/src/services"
	"depotbook/src/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	env.newUser(t, "alice")

	t.Run("Valid credentials", func(t *testing.T) {
		principal, err := env.auth.Authenticate(env.ctx, "alice", "password-alice")
		require.NoError(t, err)
		assert.True(t, principal.Authenticated())
		assert.Equal(t, "alice", principal.Username)
		assert.False(t, principal.Admin)

		loaded, err := env.auth.LoadPrincipal(env.ctx, principal.UserID)
		require.NoError(t, err)
		assert.Equal(t, principal, loaded)
	})

	t.Run("Bad credentials give the anonymous principal", func(t *testing.T) {
		principal, err := env.auth.Authenticate(env.ctx, "alice", "wrong-password")
		assertKind(t, utils.KindAuthorization, err)
		assert.False(t, principal.Authenticated())

		_, unknownErr := env.auth.Authenticate(env.ctx, "nobody", "password-alice")
		assertKind(t, utils.KindAuthorization, unknownErr)
		assert.Equal(t, err.Error(), unknownErr.Error())
	})

	t.Run("Unknown user id", func(t *testing.T) {
		_, err := env.auth.LoadPrincipal(env.ctx, 4242)
		assertKind(t, utils.KindAuthorization, err)
	})
}

func TestAddUser(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Only admins add users", func(t *testing.T) {
		alice := env.newUser(t, "alice")
		_, err := env.auth.AddUser(env.ctx, alice, "bob", "password-bob")
		assertKind(t, utils.KindAuthorization, err)
		_, err = env.auth.AddUser(env.ctx, services.Principal{}, "bob", "password-bob")
		assertKind(t, utils.KindAuthorization, err)
	})

	t.Run("Duplicate username", func(t *testing.T) {
		env.newUser(t, "carol")
		_, err := env.auth.AddUser(env.ctx, env.admin, "carol", "another-password")
		assertKind(t, utils.KindConflict, err)
	})

	t.Run("Field limits", func(t *testing.T) {
		_, err := env.auth.AddUser(env.ctx, env.admin, "dave", "short")
		assertKind(t, utils.KindConstraint, err)
		_, err = env.auth.AddUser(env.ctx, env.admin, "dave", strings.Repeat("x", 73))
		assertKind(t, utils.KindConstraint, err)
		_, err = env.auth.AddUser(env.ctx, env.admin, strings.Repeat("d", 51), "password-dave")
		assertKind(t, utils.KindConstraint, err)
		_, err = env.auth.AddUser(env.ctx, env.admin, "  ", "password-dave")
		assertKind(t, utils.KindConstraint, err)

		user, err := env.auth.AddUser(env.ctx, env.admin, "dave", strings.Repeat("x", 72))
		require.NoError(t, err)
		assert.NotEqual(t, strings.Repeat("x", 72), user.PasswordHash)
	})

	t.Run("EnsureAdmin is idempotent", func(t *testing.T) {
		require.NoError(t, env.auth.EnsureAdmin(env.ctx, "admin", "other-password"))
		_, err := env.auth.Authenticate(env.ctx, "admin", "admin-password")
		require.NoError(t, err)
	})
}

func TestAddDepot(t *testing.T) {
	env := newTestEnv(t)
	alice := env.newUser(t, "alice")

	depot := env.newDepot(t, alice, "D1")
	assert.Equal(t, "EUR", depot.Currency)

	flags, err := env.auth.ResolvePermission(env.ctx, alice, testBroker, "D1")
	require.NoError(t, err)
	assert.Equal(t, models.PermissionAll, flags)

	_, err = env.auth.AddDepot(env.ctx, alice, testBroker, "D1", "EUR")
	assertKind(t, utils.KindConflict, err)

	_, err = env.auth.AddDepot(env.ctx, alice, testBroker, "D2", "XXY")
	assertKind(t, utils.KindConstraint, err)

	_, err = env.auth.AddDepot(env.ctx, alice, "", "D3", "EUR")
	assertKind(t, utils.KindValidation, err)

	_, err = env.auth.AddDepot(env.ctx, services.Principal{}, testBroker, "D4", "EUR")
	assertKind(t, utils.KindAuthorization, err)

	_, err = env.auth.ResolvePermission(env.ctx, alice, testBroker, "missing")
	assertKind(t, utils.KindNotFound, err)
}

func TestPermissions(t *testing.T) {
	setup := func(t *testing.T) (*testEnv, services.Principal, services.Principal) {
		env := newTestEnv(t)
		owner := env.newUser(t, "owner")
		other := env.newUser(t, "other")
		env.newDepot(t, owner, "D1")
		return env, owner, other
	}

	t.Run("Grant ORs into the existing row", func(t *testing.T) {
		env, owner, other := setup(t)

		perm, err := env.auth.GrantPermission(env.ctx, owner, testBroker, "D1", "other", models.PermissionRead)
		require.NoError(t, err)
		assert.Equal(t, models.PermissionRead, perm.Flags)

		perm, err = env.auth.GrantPermission(env.ctx, owner, testBroker, "D1", "other", models.PermissionWrite)
		require.NoError(t, err)
		assert.Equal(t, models.PermissionRead|models.PermissionWrite, perm.Flags)

		flags, err := env.auth.ResolvePermission(env.ctx, other, testBroker, "D1")
		require.NoError(t, err)
		assert.Equal(t, models.PermissionRead|models.PermissionWrite, flags)
		assert.Equal(t, int64(2), env.countRows(t, &models.Permission{}))
	})

	t.Run("Revoke clears bits and drops empty rows", func(t *testing.T) {
		env, owner, other := setup(t)
		_, err := env.auth.GrantPermission(env.ctx, owner, testBroker, "D1", "other", models.PermissionRead|models.PermissionWrite)
		require.NoError(t, err)

		require.NoError(t, env.auth.RevokePermission(env.ctx, owner, testBroker, "D1", "other", models.PermissionWrite))
		flags, err := env.auth.ResolvePermission(env.ctx, other, testBroker, "D1")
		require.NoError(t, err)
		assert.Equal(t, models.PermissionRead, flags)

		require.NoError(t, env.auth.RevokePermission(env.ctx, owner, testBroker, "D1", "other", models.PermissionRead))
		flags, err = env.auth.ResolvePermission(env.ctx, other, testBroker, "D1")
		require.NoError(t, err)
		assert.Zero(t, flags)
		assert.Equal(t, int64(1), env.countRows(t, &models.Permission{}))

		// nothing left to revoke
		require.NoError(t, env.auth.RevokePermission(env.ctx, owner, testBroker, "D1", "other", models.PermissionRead))
	})

	t.Run("Only owners grant and revoke", func(t *testing.T) {
		env, owner, other := setup(t)
		env.newUser(t, "third")
		_, err := env.auth.GrantPermission(env.ctx, owner, testBroker, "D1", "other", models.PermissionRead|models.PermissionWrite)
		require.NoError(t, err)

		_, err = env.auth.GrantPermission(env.ctx, other, testBroker, "D1", "third", models.PermissionRead)
		assertKind(t, utils.KindAuthorization, err)
		err = env.auth.RevokePermission(env.ctx, other, testBroker, "D1", "owner", models.PermissionOwn)
		assertKind(t, utils.KindAuthorization, err)

		_, err = env.auth.GrantPermission(env.ctx, owner, testBroker, "D1", "other", models.PermissionOwn)
		require.NoError(t, err)
		_, err = env.auth.GrantPermission(env.ctx, other, testBroker, "D1", "third", models.PermissionRead)
		require.NoError(t, err)
	})

	t.Run("Nobody grants to themselves", func(t *testing.T) {
		env, owner, _ := setup(t)
		_, err := env.auth.GrantPermission(env.ctx, owner, testBroker, "D1", "owner", models.PermissionRead)
		assertKind(t, utils.KindAuthorization, err)
		err = env.auth.RevokePermission(env.ctx, owner, testBroker, "D1", "owner", models.PermissionOwn)
		assertKind(t, utils.KindAuthorization, err)

		flags, err := env.auth.ResolvePermission(env.ctx, owner, testBroker, "D1")
		require.NoError(t, err)
		assert.Equal(t, models.PermissionAll, flags)
	})

	t.Run("Invalid targets", func(t *testing.T) {
		env, owner, _ := setup(t)
		_, err := env.auth.GrantPermission(env.ctx, owner, testBroker, "D1", "ghost", models.PermissionRead)
		assertKind(t, utils.KindNotFound, err)
		_, err = env.auth.GrantPermission(env.ctx, owner, testBroker, "D1", "other", 0)
		assertKind(t, utils.KindValidation, err)
		_, err = env.auth.GrantPermission(env.ctx, owner, testBroker, "D1", "other", models.PermissionFlags(8))
		assertKind(t, utils.KindValidation, err)
		_, err = env.auth.GrantPermission(env.ctx, owner, testBroker, "D9", "other", models.PermissionRead)
		assertKind(t, utils.KindNotFound, err)
	})
}
