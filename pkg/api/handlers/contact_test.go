package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/pipedesk/pipedesk/pkg/contacts"
	"github.com/pipedesk/pipedesk/pkg/database"
	"github.com/pipedesk/pipedesk/pkg/models"
)

func newJSONContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestContactGet_ForeignContactIsNotFound(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("another user's contact reads as missing", func(mt *mtest.T) {
		db := &database.Client{Mongo: mt.Client, DB: mt.Client.Database("pipedesk_test")}
		h := NewContactHandler(contacts.NewService(db), nil)

		// The owner-scoped lookup matches nothing for a foreign document
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "pipedesk_test.contacts", mtest.FirstBatch))

		c, rec := newJSONContext(mt.T, http.MethodGet, "/api/v1/contacts/"+primitive.NewObjectID().Hex(), "")
		c.Set("user_id", primitive.NewObjectID())
		c.SetParamNames("id")
		c.SetParamValues(primitive.NewObjectID().Hex())

		require.NoError(mt, h.Get(c))
		assert.Equal(mt, http.StatusNotFound, rec.Code)

		var resp models.Response
		require.NoError(mt, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(mt, resp.Success)
		assert.Equal(mt, "Contact not found", resp.Error)
	})
}

func TestContactImportJSON_PartialSuccess(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("invalid rows are skipped, valid rows imported", func(mt *mtest.T) {
		db := &database.Client{Mongo: mt.Client, DB: mt.Client.Database("pipedesk_test")}
		h := NewContactHandler(contacts.NewService(db), nil)

		// Only the valid first row reaches the database
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		body := `{"contacts":[
			{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com"},
			{"first_name":"","last_name":"Nameless"}
		]}`
		c, rec := newJSONContext(mt.T, http.MethodPost, "/api/v1/contacts/import", body)
		c.Set("user_id", primitive.NewObjectID())

		require.NoError(mt, h.ImportJSON(c))
		assert.Equal(mt, http.StatusOK, rec.Code)

		var resp struct {
			Success bool                `json:"success"`
			Data    models.ImportResult `json:"data"`
		}
		require.NoError(mt, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(mt, resp.Success)

		require.Len(mt, resp.Data.Imported, 1)
		assert.Equal(mt, "Ada", resp.Data.Imported[0].FirstName)

		require.Len(mt, resp.Data.Skipped, 1)
		assert.Equal(mt, 2, resp.Data.Skipped[0].Row)
		assert.Contains(mt, resp.Data.Skipped[0].Error, "FirstName")

		inserts := 0
		for _, evt := range mt.GetAllStartedEvents() {
			if evt.CommandName == "insert" {
				inserts++
			}
		}
		assert.Equal(mt, 1, inserts)
	})
}
