package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/microsoft/kiota-abstractions-go/authentication"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"training_server/pkg/apperr"
)

func newTestDirectory(t *testing.T, handler http.HandlerFunc) *GraphDirectory {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	adapter, err := msgraphsdk.NewGraphRequestAdapter(&authentication.AnonymousAuthenticationProvider{})
	require.NoError(t, err)
	adapter.SetBaseUrl(srv.URL)
	return NewGraphDirectoryWithAdapter(adapter)
}

func TestGraphDirectoryGetUser(t *testing.T) {
	var path, query string
	dir := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		path, query = r.URL.Path, r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u1","userPrincipalName":"ada@contoso.com","displayName":"Ada","onPremisesSyncEnabled":false}`))
	})

	profile, err := dir.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "/users/u1", path)
	assert.Contains(t, query, "onPremisesSyncEnabled")
	assert.Equal(t, "ada@contoso.com", profile.UserPrincipalName)
	require.NotNil(t, profile.OnPremisesSyncEnabled)
	assert.False(t, *profile.OnPremisesSyncEnabled)
}

func TestGraphDirectoryCloudOnlyUser(t *testing.T) {
	dir := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u2","userPrincipalName":"grace@contoso.com","mail":"grace@contoso.com"}`))
	})

	profile, err := dir.GetUser(context.Background(), "u2")
	require.NoError(t, err)
	assert.Nil(t, profile.OnPremisesSyncEnabled)
	assert.Equal(t, "grace@contoso.com", profile.Address())
}

func TestGraphDirectoryLookupFailure(t *testing.T) {
	dir := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"Request_ResourceNotFound","message":"missing"}}`))
	})

	_, err := dir.GetUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperr.ErrDirectoryLookup)
	assert.True(t, strings.Contains(err.Error(), "directory lookup failed"))
}
