package handler

import (
	"time"

	"github.com/desmedtandreas/companions-app-backend/internal/companies/models"
	"github.com/desmedtandreas/companions-app-backend/internal/companies/service"
	finmodels "github.com/desmedtandreas/companions-app-backend/internal/financials/models"
)

type errorResponse struct {
	Error string `json:"error"`
}

type companyResponse struct {
	EnterpriseNumber string     `json:"enterprise_number"`
	DisplayNumber    string     `json:"display_number"`
	Name             string     `json:"name"`
	StatusCode       string     `json:"status_code,omitempty"`
	LegalFormCode    string     `json:"legal_form_code,omitempty"`
	StartDate        *time.Time `json:"start_date,omitempty"`
	LastSyncedAt     *time.Time `json:"last_synced_at,omitempty"`
}

type searchResponse struct {
	Results []companyResponse `json:"results"`
}

type addressResponse struct {
	Type        string `json:"type"`
	Street      string `json:"street"`
	HouseNumber string `json:"house_number"`
	PostalCode  string `json:"postal_code"`
	City        string `json:"city"`
	Country     string `json:"country,omitempty"`
}

type rubricResponse struct {
	Code  string `json:"code"`
	Value string `json:"value"`
}

type personResponse struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type administratorResponse struct {
	AdministeringCompanyID *string          `json:"administering_company_id,omitempty"`
	Mandate                string           `json:"mandate"`
	Representatives        []personResponse `json:"representatives"`
}

type participationResponse struct {
	HeldCompanyID string `json:"held_company_id"`
	Percentage    string `json:"percentage"`
	StockCount    int64  `json:"stock_count"`
}

type accountResponse struct {
	Reference     string     `json:"reference"`
	EndFiscalYear *time.Time `json:"end_fiscal_year,omitempty"`
}

type accountsResponse struct {
	Accounts      []accountResponse `json:"accounts"`
	SyncScheduled bool              `json:"sync_scheduled"`
}

type accountDetailResponse struct {
	accountResponse
	Rubrics        []rubricResponse        `json:"rubrics"`
	Administrators []administratorResponse `json:"administrators"`
	Participations []participationResponse `json:"participations"`
}

type detailResponse struct {
	companyResponse
	LegalForm string                  `json:"legal_form,omitempty"`
	Addresses []addressResponse       `json:"addresses"`
	Accounts  []accountDetailResponse `json:"annual_accounts"`
}

func toCompanyResponse(c *models.Company) companyResponse {
	return companyResponse{
		EnterpriseNumber: c.EnterpriseNumber.String(),
		DisplayNumber:    c.EnterpriseNumber.Dotted(),
		Name:             c.Name,
		StatusCode:       c.StatusCode,
		LegalFormCode:    c.LegalFormCode,
		StartDate:        c.StartDate,
		LastSyncedAt:     c.LastSyncedAt,
	}
}

func toAccountResponse(a *finmodels.AnnualAccount) accountResponse {
	return accountResponse{Reference: a.Reference, EndFiscalYear: a.EndFiscalYear}
}

func toDetailResponse(d *service.CompanyDetail) detailResponse {
	resp := detailResponse{
		companyResponse: toCompanyResponse(d.Company),
		LegalForm:       d.LegalFormLabel,
		Addresses:       make([]addressResponse, 0, len(d.Addresses)),
		Accounts:        make([]accountDetailResponse, 0, len(d.Accounts)),
	}
	for _, a := range d.Addresses {
		resp.Addresses = append(resp.Addresses, addressResponse{
			Type:        a.Type,
			Street:      a.Street,
			HouseNumber: a.HouseNumber,
			PostalCode:  a.PostalCode,
			City:        a.City,
			Country:     a.Country,
		})
	}
	for _, entry := range d.Accounts {
		account := accountDetailResponse{
			accountResponse: toAccountResponse(entry.Account),
			Rubrics:         make([]rubricResponse, 0, len(entry.Rubrics)),
			Administrators:  make([]administratorResponse, 0, len(entry.Administrators)),
			Participations:  make([]participationResponse, 0, len(entry.Participations)),
		}
		for _, r := range entry.Rubrics {
			account.Rubrics = append(account.Rubrics, rubricResponse{Code: r.Code, Value: r.Value.String()})
		}
		for _, admin := range entry.Administrators {
			item := administratorResponse{
				Mandate:         admin.Mandate,
				Representatives: make([]personResponse, 0, len(admin.Representatives)),
			}
			if admin.AdministeringCompanyID != nil {
				id := admin.AdministeringCompanyID.String()
				item.AdministeringCompanyID = &id
			}
			for _, rep := range admin.Representatives {
				item.Representatives = append(item.Representatives, personResponse{
					FirstName: rep.FirstName,
					LastName:  rep.LastName,
				})
			}
			account.Administrators = append(account.Administrators, item)
		}
		for _, part := range entry.Participations {
			account.Participations = append(account.Participations, participationResponse{
				HeldCompanyID: part.HeldCompanyID.String(),
				Percentage:    part.Percentage.String(),
				StockCount:    part.StockCount,
			})
		}
		resp.Accounts = append(resp.Accounts, account)
	}
	return resp
}
