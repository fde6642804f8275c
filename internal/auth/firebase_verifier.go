package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/folio/blogapi/internal/model"
)

// firebaseTokenVerifier はFirebase Admin SDKのauth.Clientのうち、検証に必要な部分集合。
type firebaseTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseVerifier はFirebase IDトークンを検証する。
type FirebaseVerifier struct {
	client firebaseTokenVerifier
}

// NewFirebaseVerifier はFirebase Admin SDKを初期化してFirebaseVerifierを生成する。
// credentialsFileが空の場合はApplication Default Credentialsを使用する。
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (*FirebaseVerifier, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth: %w", err)
	}

	return &FirebaseVerifier{client: client}, nil
}

// Verify はFirebase IDトークンを検証し、uidとプロフィール情報を返す。
func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*model.IdentityInfo, error) {
	tok, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, model.NewInvalidIdentityTokenError(err)
	}

	info := &model.IdentityInfo{
		SubjectID:   tok.UID,
		Email:       claimString(tok.Claims, "email"),
		DisplayName: claimString(tok.Claims, "name"),
		AvatarURL:   claimString(tok.Claims, "picture"),
	}
	if err := validateIdentity(info); err != nil {
		return nil, model.NewInvalidIdentityTokenError(err)
	}
	return info, nil
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// compile-time interface check
var _ Verifier = (*FirebaseVerifier)(nil)
