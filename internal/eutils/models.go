package eutils

import (
	"encoding/json"
)

// Database is the Entrez database every call targets.
const Database = "pubmed"

// SearchRequest holds the esearch parameters the service varies.
type SearchRequest struct {
	Term   string
	RetMax int
	Sort   string
}

// Response models

type ESearchResponse struct {
	Result *ESearchResult `json:"esearchresult"`
}

type ESearchResult struct {
	Count            string   `json:"count"`
	RetMax           string   `json:"retmax"`
	RetStart         string   `json:"retstart"`
	IDList           []string `json:"idlist"`
	QueryTranslation string   `json:"querytranslation"`
	Error            string   `json:"ERROR,omitempty"`
}

// IDs returns the identifier list in upstream (relevance) order, or nil
// when the esearchresult block or its idlist is absent.
func (r *ESearchResponse) IDs() []string {
	if r == nil || r.Result == nil {
		return nil
	}
	return r.Result.IDList
}

// ESummaryResponse keeps the result block raw: it mixes one object per
// PMID with a "uids" array, so it cannot decode into a single map type.
type ESummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

type DocumentSummary struct {
	UID             string   `json:"uid"`
	Title           *string  `json:"title"`
	Authors         []Author `json:"authors"`
	FullJournalName *string  `json:"fulljournalname"`
	PubDate         *string  `json:"pubdate"`
}

type Author struct {
	Name      string `json:"name"`
	AuthType  string `json:"authtype"`
	ClusterID string `json:"clusterid"`
}

// Document returns the summary for pmid, or nil when the entry is
// missing, null, not an object or empty. Fields are read one at a time:
// a string or number becomes its text, any other type leaves the field
// unset, and author items that are not objects are dropped.
func (r *ESummaryResponse) Document(pmid string) *DocumentSummary {
	if r == nil || r.Result == nil {
		return nil
	}
	raw, ok := r.Result[pmid]
	if !ok {
		return nil
	}

	fields, ok := object(raw)
	if !ok || len(fields) == 0 {
		return nil
	}

	doc := &DocumentSummary{
		Title:           text(fields["title"]),
		Authors:         authors(fields["authors"]),
		FullJournalName: text(fields["fulljournalname"]),
		PubDate:         text(fields["pubdate"]),
	}
	if uid := text(fields["uid"]); uid != nil {
		doc.UID = *uid
	}
	return doc
}

func object(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

func text(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		return &s
	case c == '-' || (c >= '0' && c <= '9'):
		s := string(raw)
		return &s
	}
	return nil
}

func authors(raw json.RawMessage) []Author {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	out := make([]Author, 0, len(items))
	for _, item := range items {
		fields, ok := object(item)
		if !ok {
			continue
		}
		var a Author
		if name := text(fields["name"]); name != nil {
			a.Name = *name
		}
		if authType := text(fields["authtype"]); authType != nil {
			a.AuthType = *authType
		}
		if clusterID := text(fields["clusterid"]); clusterID != nil {
			a.ClusterID = *clusterID
		}
		out = append(out, a)
	}
	return out
}
