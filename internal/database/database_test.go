package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"portfolio/internal/logging"
	"portfolio/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUsers_CreateGetAndConflict(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u := &models.User{Name: "Ann", Email: "ann@x.com", Image: "ann.png", PasswordHash: "hash"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.NotZero(t, u.ID)
	assert.Equal(t, models.RoleUser, u.Role)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)
	assert.Equal(t, "ann@x.com", got.Email)
	assert.Equal(t, "ann.png", got.Image)

	err = s.CreateUser(ctx, &models.User{Name: "Ann", Email: "other@x.com", PasswordHash: "hash"})
	assert.ErrorIs(t, err, ErrConflict)

	err = s.CreateUser(ctx, &models.User{Name: "Bob", Email: "ann@x.com", PasswordHash: "hash"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUsers_EmptyImagesDoNotCollide(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateUser(ctx, &models.User{Name: "Ann", Email: "ann@x.com", PasswordHash: "h"}))
	require.NoError(t, s.CreateUser(ctx, &models.User{Name: "Bob", Email: "bob@x.com", PasswordHash: "h"}))

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, "", users[0].Image)
}

func TestUsers_GetByEmailMissingIsNil(t *testing.T) {
	s := newTestStore(t)
	u, err := s.GetUserByEmail(context.Background(), "nobody@x.com")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestUsers_DeleteTwice(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u := &models.User{Name: "Ann", Email: "ann@x.com", PasswordHash: "h"}
	require.NoError(t, s.CreateUser(ctx, u))
	require.NoError(t, s.DeleteUser(ctx, u.ID))
	assert.ErrorIs(t, s.DeleteUser(ctx, u.ID), ErrNotFound)

	_, err := s.GetUser(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGalleries_CoverAndCascade(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	g := &models.Gallery{Name: "Alps", Author: "Ann"}
	require.NoError(t, s.CreateGallery(ctx, g))

	got, err := s.GetGallery(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "", got.Cover)

	first := &models.Image{Name: "peak", URL: "peak.jpg", Description: "d", GalleryID: g.ID}
	second := &models.Image{Name: "lake", URL: "lake.jpg", Description: "d", GalleryID: g.ID}
	require.NoError(t, s.CreateImage(ctx, first))
	require.NoError(t, s.CreateImage(ctx, second))

	got, err = s.GetGallery(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "peak.jpg", got.Cover)

	g.CoverImageID = &second.ID
	require.NoError(t, s.UpdateGallery(ctx, g))
	got, err = s.GetGallery(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "lake.jpg", got.Cover)

	removed, err := s.DeleteGallery(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	images, err := s.ListImages(ctx)
	require.NoError(t, err)
	assert.Empty(t, images)

	_, err = s.DeleteGallery(ctx, g.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImages_UniqueURL(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateImage(ctx, &models.Image{Name: "a", URL: "same.jpg", GalleryID: 1}))
	err := s.CreateImage(ctx, &models.Image{Name: "b", URL: "same.jpg", GalleryID: 2})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestArticles_LikeAndFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := &models.Article{Name: "Hello", Text: "t", URL: "hello", Category: "news"}
	require.NoError(t, s.CreateArticle(ctx, a))
	require.NoError(t, s.CreateArticle(ctx, &models.Article{Name: "Other", Text: "t", URL: "other", Category: "travel"}))

	likes, err := s.LikeArticle(ctx, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, likes)
	likes, err = s.LikeArticle(ctx, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, likes)

	_, err = s.LikeArticle(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	news, err := s.ListArticles(ctx, "news")
	require.NoError(t, err)
	require.Len(t, news, 1)
	assert.Equal(t, "hello", news[0].URL)
	assert.EqualValues(t, 2, news[0].Likes)
}

func TestPasswordReset_StateMachine(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.CreatePasswordReset(ctx, &models.PasswordReset{
		TokenHash: "live", Email: "ann@x.com", ExpiresAt: now.Add(time.Hour),
	}))
	require.NoError(t, s.CreatePasswordReset(ctx, &models.PasswordReset{
		TokenHash: "old", Email: "ann@x.com", ExpiresAt: now.Add(-time.Minute),
	}))

	_, err := s.ConsumePasswordReset(ctx, "unknown", now)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)

	_, err = s.ConsumePasswordReset(ctx, "old", now)
	assert.ErrorIs(t, err, models.ErrTokenExpired)

	email, err := s.ConsumePasswordReset(ctx, "live", now)
	require.NoError(t, err)
	assert.Equal(t, "ann@x.com", email)

	_, err = s.ConsumePasswordReset(ctx, "live", now)
	assert.ErrorIs(t, err, models.ErrTokenAlreadyUsed)

	require.NoError(t, s.ReleasePasswordReset(ctx, "live"))
	_, err = s.ConsumePasswordReset(ctx, "live", now)
	assert.NoError(t, err)
}
