package eutils

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/esearch.fcgi", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "pubmed", q.Get("db"))
		assert.Equal(t, "fever AND rash AND differential diagnosis", q.Get("term"))
		assert.Equal(t, "json", q.Get("retmode"))
		assert.Equal(t, "5", q.Get("retmax"))
		assert.Equal(t, "relevance", q.Get("sort"))
		assert.Empty(t, q.Get("api_key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"header":{"type":"esearch"},"esearchresult":{"count":"2","retmax":"2","retstart":"0","idlist":["39000001","38000002"]}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, logrus.New())

	response, err := client.Search(context.Background(), SearchRequest{
		Term:   "fever AND rash AND differential diagnosis",
		RetMax: 5,
		Sort:   "relevance",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"39000001", "38000002"}, response.IDs())
	assert.Equal(t, "2", response.Result.Count)
}

func TestClient_SearchMissingResultBlock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"header":{"type":"esearch"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, logrus.New())

	response, err := client.Search(context.Background(), SearchRequest{Term: "x", RetMax: 1})
	require.NoError(t, err)
	assert.Empty(t, response.IDs())
}

func TestClient_SummaryJoinsIDsInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/esummary.fcgi", r.URL.Path)
		assert.Equal(t, "5,3,9", r.URL.Query().Get("id"))
		assert.Equal(t, "pubmed", r.URL.Query().Get("db"))
		assert.Equal(t, "json", r.URL.Query().Get("retmode"))

		w.Write([]byte(`{"result":{"uids":["5","3","9"],"5":{"uid":"5","title":"Five"},"3":{"uid":"3"},"9":{"uid":"9"}}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, logrus.New())

	response, err := client.Summary(context.Background(), []string{"5", "3", "9"})
	require.NoError(t, err)

	doc := response.Document("5")
	require.NotNil(t, doc)
	require.NotNil(t, doc.Title)
	assert.Equal(t, "Five", *doc.Title)
}

func TestClient_IdentityParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "secret", q.Get("api_key"))
		assert.Equal(t, "dev@example.org", q.Get("email"))
		_, hasTool := q["tool"]
		assert.False(t, hasTool)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, logrus.New(), WithIdentity("secret", "dev@example.org", ""))

	require.NoError(t, client.Ping(context.Background()))
}

func TestClient_ErrorHandling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"API rate limit exceeded"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, logrus.New())

	_, err := client.Search(context.Background(), SearchRequest{Term: "x", RetMax: 1})
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "esearch", apiErr.Operation)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "429")
	assert.False(t, IsTimeout(err))
}

func TestClient_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, logrus.New())

	_, err := client.Summary(context.Background(), []string{"1"})
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "esummary", apiErr.Operation)
	assert.Contains(t, err.Error(), "failed to unmarshal response")
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 20*time.Millisecond, logrus.New())

	_, err := client.Search(context.Background(), SearchRequest{Term: "x", RetMax: 1})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestDocument_MissingAndEmptyEntries(t *testing.T) {
	response := &ESummaryResponse{}
	assert.Nil(t, response.Document("1"))

	summary := &ESummaryResponse{Result: map[string]json.RawMessage{
		"uids": json.RawMessage(`["1","2","3"]`),
		"1":    json.RawMessage(`null`),
		"2":    json.RawMessage(`{}`),
		"3":    json.RawMessage(`{"uid":"3","pubdate":"2024 Jan"}`),
	}}

	for _, pmid := range []string{"1", "2", "uids", "404"} {
		assert.Nil(t, summary.Document(pmid), pmid)
	}

	doc := summary.Document("3")
	require.NotNil(t, doc)
	assert.Equal(t, "3", doc.UID)
	assert.Nil(t, doc.Title)
	require.NotNil(t, doc.PubDate)
	assert.Equal(t, "2024 Jan", *doc.PubDate)
}

func TestDocument_BadlyTypedFields(t *testing.T) {
	summary := &ESummaryResponse{Result: map[string]json.RawMessage{
		"1": json.RawMessage(`{"uid":"1","title":{"text":"nested"},"pubdate":2024,"fulljournalname":null,"authors":"nobody"}`),
		"2": json.RawMessage(`{"uid":"2","title":true,"authors":[{"name":"Doe J","authtype":"Author","clusterid":7},"stray",{"name":null}]}`),
	}}

	doc := summary.Document("1")
	require.NotNil(t, doc)
	assert.Nil(t, doc.Title)
	assert.Nil(t, doc.FullJournalName)
	require.NotNil(t, doc.PubDate)
	assert.Equal(t, "2024", *doc.PubDate)
	assert.Empty(t, doc.Authors)

	doc = summary.Document("2")
	require.NotNil(t, doc)
	assert.Nil(t, doc.Title)
	assert.Equal(t, []Author{{Name: "Doe J", AuthType: "Author", ClusterID: "7"}, {}}, doc.Authors)
}
