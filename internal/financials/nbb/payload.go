package nbb

import "github.com/shopspring/decimal"

// Wire types mirror the upstream JSON field names exactly; conversion into
// the clean client types happens in one place so the rest of the codebase
// never sees upstream naming.

type referencePayload struct {
	ReferenceNumber string `json:"ReferenceNumber"`
	ExerciseDates   struct {
		EndDate string `json:"endDate"`
	} `json:"ExerciseDates"`
}

type personPayload struct {
	FirstName string `json:"FirstName"`
	LastName  string `json:"LastName"`
}

type mandatePayload struct {
	FunctionMandate string `json:"FunctionMandate"`
}

type entityPayload struct {
	Identifier string `json:"Identifier"`
}

type filingPayload struct {
	Rubrics []struct {
		Code   string          `json:"Code"`
		Value  decimal.Decimal `json:"Value"`
		Period string          `json:"Period"`
	} `json:"Rubrics"`
	Administrators struct {
		LegalPersons []struct {
			Entity          entityPayload    `json:"Entity"`
			Representatives []*personPayload `json:"Representatives"`
			Mandates        []mandatePayload `json:"Mandates"`
		} `json:"LegalPersons"`
		NaturalPersons []struct {
			Person   *personPayload   `json:"Person"`
			Mandates []mandatePayload `json:"Mandates"`
		} `json:"NaturalPersons"`
	} `json:"Administrators"`
	Participations []struct {
		Entity         entityPayload    `json:"Entity"`
		Nature         string           `json:"Nature"`
		Percentage     *decimal.Decimal `json:"Percentage"`
		NumberOfShares *int64           `json:"NumberOfShares"`
	} `json:"Participations"`
}

func (p *filingPayload) toFiling() *Filing {
	filing := &Filing{}

	for _, r := range p.Rubrics {
		filing.Rubrics = append(filing.Rubrics, Rubric{
			Code:   r.Code,
			Value:  r.Value,
			Period: r.Period,
		})
	}

	for _, legal := range p.Administrators.LegalPersons {
		admin := LegalAdministrator{
			CompanyIdentifier: legal.Entity.Identifier,
			MandateCode:       firstMandate(legal.Mandates),
		}
		for _, rep := range legal.Representatives {
			if rep == nil {
				continue
			}
			admin.Representatives = append(admin.Representatives, Representative{
				FirstName: rep.FirstName,
				LastName:  rep.LastName,
			})
		}
		filing.LegalAdministrators = append(filing.LegalAdministrators, admin)
	}

	for _, natural := range p.Administrators.NaturalPersons {
		if natural.Person == nil {
			continue
		}
		filing.NaturalAdministrators = append(filing.NaturalAdministrators, NaturalAdministrator{
			Person: Representative{
				FirstName: natural.Person.FirstName,
				LastName:  natural.Person.LastName,
			},
			MandateCode: firstMandate(natural.Mandates),
		})
	}

	for _, part := range p.Participations {
		filing.Participations = append(filing.Participations, ParticipationEntry{
			CompanyIdentifier: part.Entity.Identifier,
			Nature:            part.Nature,
			Percentage:        part.Percentage,
			StockCount:        part.NumberOfShares,
		})
	}

	return filing
}

func firstMandate(mandates []mandatePayload) string {
	if len(mandates) == 0 {
		return ""
	}
	return mandates[0].FunctionMandate
}
