package testdata

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pipedesk/pipedesk/pkg/models"
)

// GeneratorConfig sizes a generated demo workspace
type GeneratorConfig struct {
	Companies            int
	ContactsPerCompany   int
	OpportunityChance    float64 // probability a company gets an opportunity
	ActivitiesPerContact int
	Expenses             int
	Leads                int
}

// DefaultGeneratorConfig returns the sizes used by the seed command
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Companies:            20,
		ContactsPerCompany:   3,
		OpportunityChance:    0.6,
		ActivitiesPerContact: 2,
		Expenses:             40,
		Leads:                30,
	}
}

// Workspace holds one user's generated demo documents
type Workspace struct {
	Companies     []models.Company
	Contacts      []models.Contact
	Opportunities []models.Opportunity
	Activities    []models.Activity
	Expenses      []models.Expense
	Leads         []models.Lead
}

var positions = []string{
	"CEO", "CTO", "CFO", "Sales Director", "Purchasing Manager",
	"Operations Manager", "Head of IT", "Office Manager",
}

var leadSources = []string{
	"website", "referral", "cold_call", "event", "linkedin", "advertisement",
}

// GenerateWorkspace produces a coherent CRM data set for one user: every
// contact belongs to a generated company, every opportunity references a
// generated company and contact, and so on.
func GenerateWorkspace(userID primitive.ObjectID, config GeneratorConfig) *Workspace {
	ws := &Workspace{}
	now := time.Now().UTC()

	for i := 0; i < config.Companies; i++ {
		company := models.Company{
			ID:      primitive.NewObjectID(),
			UserID:  userID,
			Name:    gofakeit.Company(),
			Sector:  pick(models.DefaultSectors),
			Website: fmt.Sprintf("https://%s", gofakeit.DomainName()),
			Email:   gofakeit.Email(),
			Phone:   gofakeit.Phone(),
			Address: models.Address{
				Street:  gofakeit.Street(),
				City:    gofakeit.City(),
				State:   gofakeit.StateAbr(),
				Country: "US",
				Zip:     gofakeit.Zip(),
			},
			Status:    pick([]string{models.CompanyStatusActive, models.CompanyStatusProspect, models.CompanyStatusInactive}),
			Priority:  pick([]string{models.PriorityLow, models.PriorityMedium, models.PriorityHigh}),
			CreatedAt: daysAgo(now, 365),
		}
		company.UpdatedAt = company.CreatedAt
		company.PointOfContact = models.PointOfContact{
			Name:       gofakeit.Name(),
			Importance: rand.Intn(3) + 1,
		}
		ws.Companies = append(ws.Companies, company)

		for j := 0; j < config.ContactsPerCompany; j++ {
			companyID := company.ID
			contact := models.Contact{
				ID:        primitive.NewObjectID(),
				UserID:    userID,
				FirstName: gofakeit.FirstName(),
				LastName:  gofakeit.LastName(),
				Email:     gofakeit.Email(),
				Phone:     gofakeit.Phone(),
				Position:  pick(positions),
				CompanyID: &companyID,
				IsActive:  rand.Float64() < 0.9,
				CreatedAt: daysAgo(now, 300),
			}
			contact.UpdatedAt = contact.CreatedAt
			ws.Contacts = append(ws.Contacts, contact)

			for k := 0; k < config.ActivitiesPerContact; k++ {
				ws.Activities = append(ws.Activities, generateActivity(userID, &contact, now))
			}
		}

		if rand.Float64() < config.OpportunityChance {
			ws.Opportunities = append(ws.Opportunities, generateOpportunity(userID, &company, ws.Contacts, now))
		}
	}

	for i := 0; i < config.Expenses; i++ {
		ws.Expenses = append(ws.Expenses, generateExpense(userID, ws.Companies, ws.Opportunities, now))
	}

	for i := 0; i < config.Leads; i++ {
		ws.Leads = append(ws.Leads, generateLead(userID, now))
	}

	return ws
}

func generateOpportunity(userID primitive.ObjectID, company *models.Company, contacts []models.Contact, now time.Time) models.Opportunity {
	amount := float64(rand.Intn(95)+5) * 1000
	probability := rand.Intn(10) * 10
	status := pick(models.PipelineStages)

	openDate := daysAgo(now, 180)
	opp := models.Opportunity{
		ID:               primitive.NewObjectID(),
		UserID:           userID,
		Title:            fmt.Sprintf("%s - %s", company.Name, gofakeit.BuzzWord()),
		Amount:           amount,
		ForecastAmount:   amount * float64(probability) / 100,
		CompanyID:        company.ID,
		Status:           status,
		Probability:      probability,
		Priority:         pick([]string{models.PriorityLow, models.PriorityMedium, models.PriorityHigh}),
		Sector:           company.Sector,
		ForecastCategory: pick([]string{models.ForecastPipeline, models.ForecastBestCase, models.ForecastCommit, models.ForecastClosed}),
		Importance:       rand.Intn(3) + 1,
		OpenDate:         &openDate,
		CreatedAt:        openDate,
		UpdatedAt:        openDate,
	}

	// Link a contact from the same company when one exists
	for i := range contacts {
		if contacts[i].CompanyID != nil && *contacts[i].CompanyID == company.ID {
			contactID := contacts[i].ID
			opp.ContactID = &contactID
			break
		}
	}

	if status == models.StageClosedWin || status == models.StageLost {
		closeDate := daysAgo(now, 30)
		opp.CloseDate = &closeDate
	}
	return opp
}

func generateActivity(userID primitive.ObjectID, contact *models.Contact, now time.Time) models.Activity {
	// Mix past and future so the overdue sweep and upcoming view both
	// have material to work with
	start := now.Add(time.Duration(rand.Intn(28*24)-14*24) * time.Hour)
	end := start.Add(time.Hour)

	status := models.ActivityScheduled
	if start.Before(now) && rand.Float64() < 0.7 {
		status = models.ActivityCompleted
	}

	contactID := contact.ID
	activity := models.Activity{
		ID:          primitive.NewObjectID(),
		UserID:      userID,
		Title:       fmt.Sprintf("%s with %s %s", pick([]string{"Call", "Meeting", "Demo", "Follow up"}), contact.FirstName, contact.LastName),
		Type:        pick(models.DefaultActivityTypes),
		Status:      status,
		StartTime:   start,
		EndTime:     &end,
		Location:    gofakeit.City(),
		Description: gofakeit.Sentence(8),
		ContactID:   &contactID,
		CompanyID:   contact.CompanyID,
		CreatedAt:   daysAgo(now, 60),
	}
	activity.UpdatedAt = activity.CreatedAt
	return activity
}

func generateExpense(userID primitive.ObjectID, companies []models.Company, opps []models.Opportunity, now time.Time) models.Expense {
	expense := models.Expense{
		ID:             primitive.NewObjectID(),
		UserID:         userID,
		Title:          gofakeit.ProductName(),
		Amount:         float64(rand.Intn(49000)+1000) / 100,
		Category:       pick(models.ExpenseCategories),
		Date:           daysAgo(now, 365),
		TaxRate:        pick([]float64{0, 10, 21}),
		Billable:       rand.Float64() < 0.5,
		ApprovalStatus: pick([]string{models.ApprovalPending, models.ApprovalApproved, models.ApprovalRejected}),
		CreatedAt:      daysAgo(now, 60),
	}
	expense.UpdatedAt = expense.CreatedAt
	expense.ComputeTotals()

	if len(companies) > 0 && rand.Float64() < 0.5 {
		companyID := companies[rand.Intn(len(companies))].ID
		expense.CompanyID = &companyID
	}
	if len(opps) > 0 && rand.Float64() < 0.3 {
		oppID := opps[rand.Intn(len(opps))].ID
		expense.OpportunityID = &oppID
	}
	return expense
}

func generateLead(userID primitive.ObjectID, now time.Time) models.Lead {
	score := rand.Intn(101)
	temperature := models.TempCold
	switch {
	case score >= 75:
		temperature = models.TempHot
	case score >= 40:
		temperature = models.TempWarm
	}

	lead := models.Lead{
		ID:             primitive.NewObjectID(),
		UserID:         userID,
		Name:           gofakeit.Name(),
		Email:          gofakeit.Email(),
		Phone:          gofakeit.Phone(),
		CompanyName:    gofakeit.Company(),
		Status:         pick([]string{models.LeadNew, models.LeadContacted, models.LeadQualified}),
		Temperature:    temperature,
		Score:          score,
		Source:         pick(leadSources),
		EstimatedValue: float64(rand.Intn(50)+1) * 1000,
		Notes:          gofakeit.Sentence(10),
		CreatedAt:      daysAgo(now, 120),
	}
	lead.UpdatedAt = lead.CreatedAt
	return lead
}

func pick[T any](options []T) T {
	return options[rand.Intn(len(options))]
}

func daysAgo(now time.Time, maxDays int) time.Time {
	return now.AddDate(0, 0, -rand.Intn(maxDays+1))
}
