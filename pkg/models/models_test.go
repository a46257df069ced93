package models

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name      string
		page      int
		limit     int
		wantPage  int
		wantLimit int
	}{
		{"defaults", 0, 0, 1, 50},
		{"negative page", -3, 20, 1, 20},
		{"limit capped", 2, 500, 2, 100},
		{"limit at cap", 1, 100, 1, 100},
		{"valid values kept", 4, 25, 4, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, limit := NormalizePage(tt.page, tt.limit)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantLimit, limit)
		})
	}
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 50, 101)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 50, p.Limit)
	assert.Equal(t, int64(101), p.Total)
	assert.Equal(t, 3, p.Pages)

	p = NewPagination(1, 50, 0)
	assert.Equal(t, 0, p.Pages)

	p = NewPagination(1, 50, 50)
	assert.Equal(t, 1, p.Pages)
}

func TestResponseEnvelopes(t *testing.T) {
	ok := OK(map[string]string{"hello": "world"})
	assert.True(t, ok.Success)
	assert.Empty(t, ok.Error)
	assert.Nil(t, ok.Pagination)

	fail := Fail("something broke")
	assert.False(t, fail.Success)
	assert.Equal(t, "something broke", fail.Error)
	assert.Nil(t, fail.Data)

	paginated := Paginated([]int{1, 2, 3}, NewPagination(1, 50, 3))
	assert.True(t, paginated.Success)
	assert.NotNil(t, paginated.Pagination)
}

func TestContactFilter_Build(t *testing.T) {
	userID := primitive.NewObjectID()
	companyID := primitive.NewObjectID()
	active := true

	q := ContactFilter{
		CompanyID: companyID.Hex(),
		Tag:       "vip",
		IsActive:  &active,
	}.Build(userID)

	assert.Equal(t, userID, q["user_id"])
	assert.Equal(t, companyID, q["company_id"])
	assert.Equal(t, "vip", q["tags"])
	assert.Equal(t, true, q["is_active"])
	assert.NotContains(t, q, "$or")
}

func TestContactFilter_Build_Search(t *testing.T) {
	userID := primitive.NewObjectID()

	q := ContactFilter{Search: "ali"}.Build(userID)

	clauses, ok := q["$or"].(bson.A)
	assert.True(t, ok)
	assert.Len(t, clauses, 4)
}

func TestContactFilter_Build_BadCompanyID(t *testing.T) {
	q := ContactFilter{CompanyID: "not-a-hex-id"}.Build(primitive.NewObjectID())
	assert.NotContains(t, q, "company_id")
}

func TestContactFilter_Build_SearchEscapesRegex(t *testing.T) {
	q := ContactFilter{Search: "a.c+"}.Build(primitive.NewObjectID())

	clauses := q["$or"].(bson.A)
	first := clauses[0].(bson.M)
	for _, v := range first {
		rx, ok := v.(primitive.Regex)
		assert.True(t, ok)
		assert.Equal(t, `a\.c\+`, rx.Pattern)
		assert.Equal(t, "i", rx.Options)
	}
}

func TestOpportunityFilter_Build_AmountRange(t *testing.T) {
	userID := primitive.NewObjectID()
	min := 1000.0
	max := 5000.0

	q := OpportunityFilter{MinAmount: &min, MaxAmount: &max}.Build(userID)
	assert.Equal(t, bson.M{"$gte": 1000.0, "$lte": 5000.0}, q["amount"])

	q = OpportunityFilter{MinAmount: &min}.Build(userID)
	assert.Equal(t, bson.M{"$gte": 1000.0}, q["amount"])

	q = OpportunityFilter{}.Build(userID)
	assert.NotContains(t, q, "amount")
}

func TestCreateActivityRequest_Validate(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	before := start.Add(-time.Hour)
	equal := start
	after := start.Add(time.Hour)

	assert.NoError(t, CreateActivityRequest{Title: "Call", StartTime: start}.Validate())
	assert.NoError(t, CreateActivityRequest{Title: "Call", StartTime: start, EndTime: &after}.Validate())
	// Zero-length window is allowed
	assert.NoError(t, CreateActivityRequest{Title: "Call", StartTime: start, EndTime: &equal}.Validate())
	assert.Error(t, CreateActivityRequest{Title: "Call", StartTime: start, EndTime: &before}.Validate())
}

func TestCreateOpportunityRequest_ProbabilityBounds(t *testing.T) {
	v := validator.New()
	base := CreateOpportunityRequest{Title: "Renewal", CompanyID: primitive.NewObjectID().Hex()}

	for _, p := range []int{0, 50, 100} {
		req := base
		req.Probability = &p
		assert.NoError(t, v.Struct(req), "probability %d should pass", p)
	}
	for _, p := range []int{-1, 101} {
		req := base
		req.Probability = &p
		assert.Error(t, v.Struct(req), "probability %d should fail", p)
	}
}

func TestExpense_ComputeTotals(t *testing.T) {
	e := Expense{Amount: 100, TaxRate: 21}
	e.ComputeTotals()
	assert.Equal(t, 21.0, e.TaxAmount)
	assert.Equal(t, 121.0, e.Total)

	e = Expense{Amount: 50}
	e.ComputeTotals()
	assert.Equal(t, 0.0, e.TaxAmount)
	assert.Equal(t, 50.0, e.Total)
}

func TestCreateCompanyRequest_Validate(t *testing.T) {
	req := CreateCompanyRequest{
		Name:     "Acme",
		Contacts: []EmbeddedContact{{Name: "Alice"}, {Name: ""}},
	}
	err := req.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "contacts[1]")

	req.Contacts = []EmbeddedContact{{Name: "Alice"}}
	assert.NoError(t, req.Validate())
}

func TestUserInfo(t *testing.T) {
	id := primitive.NewObjectID()
	u := User{ID: id, Email: "a@b.c", Name: "Alice", Role: RoleAdmin, EmailVerified: true}

	info := u.Info()
	assert.Equal(t, id.Hex(), info.ID)
	assert.Equal(t, "a@b.c", info.Email)
	assert.Equal(t, RoleAdmin, info.Role)
	assert.True(t, info.EmailVerified)
}

func TestCompanySummary(t *testing.T) {
	c := Company{ID: primitive.NewObjectID(), Name: "Acme", Sector: "technology", Phone: "123"}
	s := c.Summary()
	assert.Equal(t, c.ID, s.ID)
	assert.Equal(t, "Acme", s.Name)
	assert.Equal(t, "technology", s.Sector)
}
