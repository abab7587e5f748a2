package nbb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desmedtandreas/companions-app-backend/internal/platform/config"
)

func testClient(serverURL string) *Client {
	return NewClient(config.NBBConfig{
		BaseURL:         serverURL,
		SubscriptionKey: "test-key",
		UserAgent:       "companions-test/1.0",
	})
}

func TestListReferences(t *testing.T) {
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		assert.Equal(t, "/legalEntity/0123456789/references", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"ReferenceNumber":"2024-00001","ExerciseDates":{"endDate":"2024-12-31"}},
			{"ReferenceNumber":"2023-00002","ExerciseDates":{}}
		]`))
	}))
	defer server.Close()

	refs, err := testClient(server.URL).ListReferences(context.Background(), "0123456789")
	require.NoError(t, err)
	require.Len(t, refs, 2)

	assert.Equal(t, "2024-00001", refs[0].Number)
	require.NotNil(t, refs[0].PeriodEnd)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), *refs[0].PeriodEnd)
	assert.Nil(t, refs[1].PeriodEnd)

	assert.Equal(t, "test-key", gotHeaders.Get("NBB-CBSO-Subscription-Key"))
	assert.Equal(t, "application/json", gotHeaders.Get("Accept"))
	assert.Equal(t, "companions-test/1.0", gotHeaders.Get("User-Agent"))
	assert.NotEmpty(t, gotHeaders.Get("X-Request-Id"))
}

func TestListReferencesSkipsEntriesWithoutNumber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[
			{"ReferenceNumber":"","ExerciseDates":{"endDate":"2024-12-31"}},
			{"ReferenceNumber":"2024-00001","ExerciseDates":{}}
		]`))
	}))
	defer server.Close()

	refs, err := testClient(server.URL).ListReferences(context.Background(), "0123456789")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "2024-00001", refs[0].Number)
}

func TestListReferencesUnknownCompany(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testClient(server.URL).ListReferences(context.Background(), "0123456789")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchFilingDecodesPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/deposit/2024-00001/accountingData", r.URL.Path)
		assert.Equal(t, "application/x.jsonxbrl", r.Header.Get("Accept"))
		w.Write([]byte(`{
			"Rubrics":[{"Code":"10/15","Value":1000.5,"Period":"N"}],
			"Administrators":{
				"LegalPersons":[{
					"Entity":{"Identifier":"0222222222"},
					"Representatives":[{"FirstName":"Jan","LastName":"Peeters"},null],
					"Mandates":[{"FunctionMandate":"ADM"}]
				}],
				"NaturalPersons":[
					{"Person":{"FirstName":"An","LastName":"Claes"},"Mandates":[]},
					{"Person":null,"Mandates":[]}
				]
			},
			"Participations":[{
				"Entity":{"Identifier":"0333333333"},
				"Nature":"shares",
				"Percentage":25.5,
				"NumberOfShares":100
			}]
		}`))
	}))
	defer server.Close()

	filing, err := testClient(server.URL).FetchFiling(context.Background(), "2024-00001")
	require.NoError(t, err)

	require.Len(t, filing.Rubrics, 1)
	assert.Equal(t, "10/15", filing.Rubrics[0].Code)
	assert.Equal(t, "N", filing.Rubrics[0].Period)
	assert.Equal(t, "1000.5", filing.Rubrics[0].Value.String())

	require.Len(t, filing.LegalAdministrators, 1)
	legal := filing.LegalAdministrators[0]
	assert.Equal(t, "0222222222", legal.CompanyIdentifier)
	assert.Equal(t, "ADM", legal.MandateCode)
	require.Len(t, legal.Representatives, 1, "null representatives are dropped")
	assert.Equal(t, "Jan", legal.Representatives[0].FirstName)

	require.Len(t, filing.NaturalAdministrators, 1, "null persons are dropped")
	assert.Equal(t, "An", filing.NaturalAdministrators[0].Person.FirstName)
	assert.Empty(t, filing.NaturalAdministrators[0].MandateCode)

	require.Len(t, filing.Participations, 1)
	part := filing.Participations[0]
	assert.Equal(t, "shares", part.Nature)
	require.NotNil(t, part.Percentage)
	assert.Equal(t, "25.5", part.Percentage.String())
	require.NotNil(t, part.StockCount)
	assert.Equal(t, int64(100), *part.StockCount)
}

func TestFetchFilingNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testClient(server.URL).FetchFiling(context.Background(), "2024-00001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServerErrorsAreUpstreamErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := testClient(server.URL).ListReferences(context.Background(), "0123456789")
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusServiceUnavailable, upstream.StatusCode)
	assert.Equal(t, "ListReferences", upstream.Op)
	assert.NotEmpty(t, upstream.RequestID)
}

func TestMalformedBodyIsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).FetchFiling(context.Background(), "2024-00001")
	var upstream *UpstreamError
	assert.ErrorAs(t, err, &upstream)
}

func TestTransportFailureIsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	_, err := testClient(server.URL).ListReferences(context.Background(), "0123456789")
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Zero(t, upstream.StatusCode)
}
