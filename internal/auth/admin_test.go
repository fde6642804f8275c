package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio/blogapi/internal/model"
)

func TestRequireAdmin(t *testing.T) {
	issuer := newTestIssuer(t, issuedAt)

	adminToken, _, err := issuer.Issue("admin@x.com", "adm", true)
	require.NoError(t, err)
	userToken, _, err := issuer.Issue("a@x.com", "u1", false)
	require.NoError(t, err)

	claims, err := RequireAdmin(issuer, adminToken)
	require.NoError(t, err)
	assert.Equal(t, "adm", claims.SubjectID)

	_, err = RequireAdmin(issuer, userToken)
	assert.True(t, model.IsCode(err, model.ErrCodeForbidden))

	_, err = RequireAdmin(issuer, "garbage")
	assert.True(t, model.IsCode(err, model.ErrCodeTokenInvalid))
}

func TestCheckAdmin_Nil(t *testing.T) {
	assert.True(t, model.IsCode(CheckAdmin(nil), model.ErrCodeForbidden))
}
