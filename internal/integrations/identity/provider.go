// Package identity mints temporary AWS credentials from a Cognito identity
// pool, the way the browser clients always did before opening the streaming
// channel.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"

	"petstay-frontdesk/internal/signer"
)

// expirySlack refreshes credentials slightly before the provider-reported
// expiry so a signed URL built from them stays verifiable.
const expirySlack = 5 * time.Minute

// cognitoAPI is the minimal Cognito Identity interface required by
// Provider. *cognitoidentity.Client satisfies it.
type cognitoAPI interface {
	GetId(ctx context.Context, in *cognitoidentity.GetIdInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetIdOutput, error)
	GetCredentialsForIdentity(ctx context.Context, in *cognitoidentity.GetCredentialsForIdentityInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetCredentialsForIdentityOutput, error)
}

// Provider resolves and caches unauthenticated guest credentials for one
// identity pool. It satisfies aws.CredentialsProvider. Acquisition failures
// are surfaced as-is; this layer never retries the identity flow.
type Provider struct {
	api    cognitoAPI
	poolID string
	now    func() time.Time

	mu         sync.Mutex
	identityID string
	cached     aws.Credentials
}

func New(api cognitoAPI, identityPoolID string) (*Provider, error) {
	if api == nil {
		return nil, errors.New("identity: api must not be nil")
	}
	if strings.TrimSpace(identityPoolID) == "" {
		return nil, errors.New("identity: identity pool id must not be empty")
	}
	return &Provider{
		api:    api,
		poolID: identityPoolID,
		now:    time.Now,
	}, nil
}

// Retrieve implements aws.CredentialsProvider.
func (p *Provider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached.AccessKeyID != "" && p.now().Before(p.cached.Expires.Add(-expirySlack)) {
		return p.cached, nil
	}

	if p.identityID == "" {
		out, err := p.api.GetId(ctx, &cognitoidentity.GetIdInput{
			IdentityPoolId: aws.String(p.poolID),
		})
		if err != nil {
			return aws.Credentials{}, fmt.Errorf("identity: get id: %w", err)
		}
		p.identityID = aws.ToString(out.IdentityId)
	}

	out, err := p.api.GetCredentialsForIdentity(ctx, &cognitoidentity.GetCredentialsForIdentityInput{
		IdentityId: aws.String(p.identityID),
	})
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("identity: get credentials: %w", err)
	}
	if out.Credentials == nil {
		return aws.Credentials{}, errors.New("identity: response carried no credentials")
	}

	creds := aws.Credentials{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
		Source:          "CognitoIdentityPool",
		CanExpire:       true,
	}
	if out.Credentials.Expiration != nil {
		creds.Expires = *out.Credentials.Expiration
	}
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return aws.Credentials{}, errors.New("identity: response carried incomplete credentials")
	}

	p.cached = creds
	return creds, nil
}

// SignerCredentials adapts the cached credentials for the URL signer.
func (p *Provider) SignerCredentials(ctx context.Context) (signer.Credentials, error) {
	creds, err := p.Retrieve(ctx)
	if err != nil {
		return signer.Credentials{}, err
	}
	return signer.Credentials{
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
		SessionToken:    creds.SessionToken,
	}, nil
}
