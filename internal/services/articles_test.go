package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/litscout/backend/internal/eutils"
	"github.com/litscout/backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	ids         []string
	summaries   map[string]json.RawMessage
	searchErr   error
	summaryErr  error
	searchReqs  []eutils.SearchRequest
	summaryReqs [][]string
}

func (f *fakeClient) Search(ctx context.Context, req eutils.SearchRequest) (*eutils.ESearchResponse, error) {
	f.searchReqs = append(f.searchReqs, req)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return &eutils.ESearchResponse{Result: &eutils.ESearchResult{IDList: f.ids}}, nil
}

func (f *fakeClient) Summary(ctx context.Context, ids []string) (*eutils.ESummaryResponse, error) {
	f.summaryReqs = append(f.summaryReqs, ids)
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	return &eutils.ESummaryResponse{Result: f.summaries}, nil
}

func newTestService(client LiteratureClient) *ArticleService {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewArticleService(client, logger)
}

func pmids(articles []models.ArticleRecord) []string {
	out := make([]string, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.PMID)
	}
	return out
}

func TestLookup_SearchParameters(t *testing.T) {
	client := &fakeClient{}
	svc := newTestService(client)

	_, err := svc.Lookup(context.Background(), "asthma AND differential diagnosis", 7)
	require.NoError(t, err)

	require.Len(t, client.searchReqs, 1)
	assert.Equal(t, eutils.SearchRequest{
		Term:   "asthma AND differential diagnosis",
		RetMax: 7,
		Sort:   "relevance",
	}, client.searchReqs[0])
}

func TestLookup_EmptyIdentifierListSkipsSummary(t *testing.T) {
	client := &fakeClient{ids: []string{}}
	svc := newTestService(client)

	resp, err := svc.Lookup(context.Background(), "zzzz", 5)
	require.NoError(t, err)

	assert.Empty(t, resp.Articles)
	assert.NotNil(t, resp.Articles)
	assert.Equal(t, "No results found.", resp.Message)
	assert.Empty(t, client.summaryReqs)
}

func TestLookup_MissingMetadataIsSkipped(t *testing.T) {
	client := &fakeClient{
		ids: []string{"111", "222"},
		summaries: map[string]json.RawMessage{
			"uids": json.RawMessage(`["222"]`),
			"222":  json.RawMessage(`{"uid":"222","title":"Second","fulljournalname":"The Lancet","pubdate":"2023 Mar 4","authors":[{"name":"Doe J","authtype":"Author","clusterid":""}]}`),
		},
	}
	svc := newTestService(client)

	resp, err := svc.Lookup(context.Background(), "q", 5)
	require.NoError(t, err)

	require.Len(t, resp.Articles, 1)
	article := resp.Articles[0]
	assert.Equal(t, "222", article.PMID)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/222/", article.Source)
	require.NotNil(t, article.Title)
	assert.Equal(t, "Second", *article.Title)
	require.NotNil(t, article.Journal)
	assert.Equal(t, "The Lancet", *article.Journal)
	require.NotNil(t, article.PubDate)
	assert.Equal(t, "2023 Mar 4", *article.PubDate)
	assert.Equal(t, []models.Author{{Name: "Doe J", AuthType: "Author"}}, article.Authors)
	assert.Empty(t, resp.Message)

	require.Len(t, client.summaryReqs, 1)
	assert.Equal(t, []string{"111", "222"}, client.summaryReqs[0])
}

func TestLookup_PreservesSearchOrder(t *testing.T) {
	client := &fakeClient{
		ids: []string{"5", "3", "9"},
		summaries: map[string]json.RawMessage{
			"uids": json.RawMessage(`["9","5","3"]`),
			"9":    json.RawMessage(`{"uid":"9"}`),
			"3":    json.RawMessage(`{"uid":"3"}`),
			"5":    json.RawMessage(`{"uid":"5"}`),
		},
	}
	svc := newTestService(client)

	for i := 0; i < 20; i++ {
		resp, err := svc.Lookup(context.Background(), "q", 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"5", "3", "9"}, pmids(resp.Articles))
	}
}

func TestLookup_DuplicateIdentifiersKept(t *testing.T) {
	client := &fakeClient{
		ids: []string{"7", "7"},
		summaries: map[string]json.RawMessage{
			"7": json.RawMessage(`{"uid":"7"}`),
		},
	}
	svc := newTestService(client)

	resp, err := svc.Lookup(context.Background(), "q", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "7"}, pmids(resp.Articles))
}

func TestLookup_AbsentFieldsAreOptional(t *testing.T) {
	client := &fakeClient{
		ids: []string{"1"},
		summaries: map[string]json.RawMessage{
			"1": json.RawMessage(`{"uid":"1"}`),
		},
	}
	svc := newTestService(client)

	resp, err := svc.Lookup(context.Background(), "q", 5)
	require.NoError(t, err)
	require.Len(t, resp.Articles, 1)

	article := resp.Articles[0]
	assert.Nil(t, article.Title)
	assert.Nil(t, article.Journal)
	assert.Nil(t, article.PubDate)
	assert.NotNil(t, article.Authors)
	assert.Empty(t, article.Authors)
}

func TestLookup_UpstreamErrorsPropagate(t *testing.T) {
	upstream := &eutils.Error{Operation: "esearch", StatusCode: http.StatusServiceUnavailable, Err: errors.New("down")}
	svc := newTestService(&fakeClient{searchErr: upstream})

	_, err := svc.Lookup(context.Background(), "q", 5)
	require.Error(t, err)

	var apiErr *eutils.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)

	client := &fakeClient{ids: []string{"1"}, summaryErr: errors.New("reset by peer")}
	_, err = newTestService(client).Lookup(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summary lookup failed")
}

func TestLookup_BadlyTypedEntryKeepsOtherRecords(t *testing.T) {
	client := &fakeClient{
		ids: []string{"1", "2"},
		summaries: map[string]json.RawMessage{
			"1": json.RawMessage(`{"uid":"1","title":["not","a","string"],"pubdate":2024,"authors":"nobody"}`),
			"2": json.RawMessage(`{"uid":"2","title":"Valid","fulljournalname":"BMJ","pubdate":"2021"}`),
		},
	}

	resp, err := newTestService(client).Lookup(context.Background(), "q", 5)
	require.NoError(t, err)
	require.Equal(t, []string{"1", "2"}, pmids(resp.Articles))

	first := resp.Articles[0]
	assert.Nil(t, first.Title)
	require.NotNil(t, first.PubDate)
	assert.Equal(t, "2024", *first.PubDate)
	assert.NotNil(t, first.Authors)
	assert.Empty(t, first.Authors)

	second := resp.Articles[1]
	require.NotNil(t, second.Title)
	assert.Equal(t, "Valid", *second.Title)
	require.NotNil(t, second.Journal)
	assert.Equal(t, "BMJ", *second.Journal)
}

func TestLookup_AgainstFakeEUtilities(t *testing.T) {
	var summaryCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/esearch.fcgi":
			assert.Equal(t, "fever AND rash AND differential diagnosis", r.URL.Query().Get("term"))
			assert.Equal(t, "3", r.URL.Query().Get("retmax"))
			w.Write([]byte(`{"esearchresult":{"count":"3","idlist":["5","3","9"]}}`))
		case "/esummary.fcgi":
			summaryCalls++
			assert.Equal(t, "5,3,9", r.URL.Query().Get("id"))
			w.Write([]byte(`{"result":{"uids":["9","3","5"],` +
				`"9":{"uid":"9","title":"Nine"},` +
				`"3":{"uid":"3","title":"Three"},` +
				`"5":{"uid":"5","title":"Five","authors":[{"name":"Roe R","authtype":"Author","clusterid":""}]}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := eutils.NewClient(server.URL, 5*time.Second, logrus.New())
	svc := newTestService(client)

	resp, err := svc.Lookup(context.Background(), Normalize("fever,rash"), 3)
	require.NoError(t, err)

	assert.Equal(t, 1, summaryCalls)
	assert.Equal(t, []string{"5", "3", "9"}, pmids(resp.Articles))
	assert.Equal(t, "Five", *resp.Articles[0].Title)
	assert.Equal(t, "Roe R", resp.Articles[0].Authors[0].Name)
	assert.Equal(t, "https://pubmed.ncbi.nlm.nih.gov/9/", resp.Articles[2].Source)
}
