package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestContext(t *testing.T, target string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestCurrentUserID(t *testing.T) {
	c := newTestContext(t, "/")

	_, ok := currentUserID(c)
	assert.False(t, ok)

	want := primitive.NewObjectID()
	c.Set("user_id", want)

	got, ok := currentUserID(c)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestCurrentUserID_WrongType(t *testing.T) {
	c := newTestContext(t, "/")
	c.Set("user_id", "not-an-object-id")

	_, ok := currentUserID(c)
	assert.False(t, ok)
}

func TestPathID(t *testing.T) {
	c := newTestContext(t, "/")
	want := primitive.NewObjectID()
	c.SetParamNames("id")
	c.SetParamValues(want.Hex())

	got, err := pathID(c)
	assert.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPathID_Invalid(t *testing.T) {
	c := newTestContext(t, "/")
	c.SetParamNames("id")
	c.SetParamValues("garbage")

	_, err := pathID(c)
	assert.Error(t, err)
}

func TestPageParams(t *testing.T) {
	c := newTestContext(t, "/?page=3&limit=25")
	page, limit := pageParams(c)
	assert.Equal(t, 3, page)
	assert.Equal(t, 25, limit)

	c = newTestContext(t, "/")
	page, limit = pageParams(c)
	assert.Equal(t, 0, page)
	assert.Equal(t, 0, limit)

	c = newTestContext(t, "/?page=abc&limit=-5")
	page, limit = pageParams(c)
	assert.Equal(t, 0, page)
	assert.Equal(t, -5, limit)
}
