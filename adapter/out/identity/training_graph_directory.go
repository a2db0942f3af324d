package identity

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	abstractions "github.com/microsoft/kiota-abstractions-go"
	auth "github.com/microsoft/kiota-authentication-azure-go"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	msgraphcore "github.com/microsoftgraph/msgraph-sdk-go-core"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/users"

	"training_server/core/domain"
	"training_server/core/port/out"
	"training_server/pkg/apperr"
	"training_server/pkg/logger"
)

// Graph rejects $batch payloads with more than 20 steps.
const maxBatchSteps = 20

var profileFields = []string{"id", "userPrincipalName", "displayName", "mail", "onPremisesSyncEnabled"}

// GraphDirectory reads users through the Graph SDK with application permissions.
type GraphDirectory struct {
	client  *msgraphsdk.GraphServiceClient
	adapter abstractions.RequestAdapter
}

// NewGraphDirectory authenticates with cred for the given scopes.
func NewGraphDirectory(cred azcore.TokenCredential, scopes []string) (*GraphDirectory, error) {
	if len(scopes) == 0 {
		scopes = []string{GraphDefaultScope}
	}
	authProvider, err := auth.NewAzureIdentityAuthenticationProviderWithScopes(cred, scopes)
	if err != nil {
		return nil, err
	}
	adapter, err := msgraphsdk.NewGraphRequestAdapter(authProvider)
	if err != nil {
		return nil, err
	}
	return NewGraphDirectoryWithAdapter(adapter), nil
}

// NewGraphDirectoryWithAdapter wires an existing request adapter.
func NewGraphDirectoryWithAdapter(adapter abstractions.RequestAdapter) *GraphDirectory {
	return &GraphDirectory{
		client:  msgraphsdk.NewGraphServiceClient(adapter),
		adapter: adapter,
	}
}

func profileQuery() *users.UserItemRequestBuilderGetRequestConfiguration {
	return &users.UserItemRequestBuilderGetRequestConfiguration{
		QueryParameters: &users.UserItemRequestBuilderGetQueryParameters{
			Select: profileFields,
		},
	}
}

// GetUser reads one user by object id or user principal name.
func (d *GraphDirectory) GetUser(ctx context.Context, id string) (*domain.DirectoryProfile, error) {
	user, err := d.client.Users().ByUserId(id).Get(ctx, profileQuery())
	if err != nil {
		return nil, apperr.DirectoryLookupFailed(id, err)
	}
	return toProfile(user), nil
}

// ResolveProfiles resolves ids through $batch requests of up to 20 users.
// Identifiers that fail individually are logged and omitted.
func (d *GraphDirectory) ResolveProfiles(ctx context.Context, ids []string) ([]*domain.DirectoryProfile, error) {
	profiles := make([]*domain.DirectoryProfile, 0, len(ids))

	for start := 0; start < len(ids); start += maxBatchSteps {
		end := start + maxBatchSteps
		if end > len(ids) {
			end = len(ids)
		}
		chunk, err := d.resolveChunk(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, chunk...)
	}
	return profiles, nil
}

func (d *GraphDirectory) resolveChunk(ctx context.Context, ids []string) ([]*domain.DirectoryProfile, error) {
	batch := msgraphcore.NewBatchRequest(d.adapter)
	stepIDs := make([]string, len(ids))

	for i, id := range ids {
		info, err := d.client.Users().ByUserId(id).ToGetRequestInformation(ctx, profileQuery())
		if err != nil {
			return nil, apperr.DirectoryLookupFailed(id, err)
		}
		item, err := batch.AddBatchRequestStep(*info)
		if err != nil {
			return nil, apperr.DirectoryLookupFailed(id, err)
		}
		stepIDs[i] = *item.GetId()
	}

	resp, err := batch.Send(ctx, d.adapter)
	if err != nil {
		return nil, apperr.DirectoryLookupFailed(ids[0], err).WithDetail("batch_size", len(ids))
	}

	profiles := make([]*domain.DirectoryProfile, 0, len(ids))
	for i, stepID := range stepIDs {
		user, err := msgraphcore.GetBatchResponseById[models.Userable](resp, stepID, models.CreateUserFromDiscriminatorValue)
		if err != nil || user == nil {
			logger.WithContext(ctx).WithError(err).Warn("[GraphDirectory] attendee %s did not resolve", ids[i])
			continue
		}
		profiles = append(profiles, toProfile(user))
	}
	return profiles, nil
}

func toProfile(user models.Userable) *domain.DirectoryProfile {
	return &domain.DirectoryProfile{
		ID:                    deref(user.GetId()),
		UserPrincipalName:     deref(user.GetUserPrincipalName()),
		DisplayName:           deref(user.GetDisplayName()),
		Mail:                  deref(user.GetMail()),
		OnPremisesSyncEnabled: user.GetOnPremisesSyncEnabled(),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var (
	_ out.DirectoryPort       = (*GraphDirectory)(nil)
	_ out.UserProfileResolver = (*GraphDirectory)(nil)
)
