package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/org-admin/internal/domain/rbac"
)

func TestListRoles_ExcludesDefaults(t *testing.T) {
	fake := newFakeProvider()
	orgs := NewOrganizationService(fake, testOrgConfig(), nil, testLogger())
	_, err := orgs.CreateOrganization(context.Background(), acmeRequest(), "super")
	require.NoError(t, err)

	svc := NewRoleService(fake, testLogger())
	roles, err := svc.ListRoles(context.Background(), "acme", "tok")
	require.NoError(t, err)

	expected := append([]string{rbac.RoleOrgAdmin}, rbac.ProvisionedRoles()...)
	assert.Equal(t, expected, roles)
	assert.NotContains(t, roles, "offline_access")
	assert.NotContains(t, roles, "uma_authorization")
	assert.NotContains(t, roles, "default-roles-acme")
}

func TestListRoles_Failure(t *testing.T) {
	fake := newFakeProvider()
	svc := NewRoleService(fake, testLogger())

	_, err := svc.ListRoles(context.Background(), "ghost", "tok")

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "Failed to fetch realm roles.", upErr.Error())
	assert.Equal(t, http.StatusNotFound, statusOf(err))
}
