package models

// NoResultsMessage accompanies an empty article list when esearch found
// no identifiers.
const NoResultsMessage = "No results found."

// SourceURLTemplate is the public PubMed page for a PMID.
const SourceURLTemplate = "https://pubmed.ncbi.nlm.nih.gov/%s/"

type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type SearchResponse struct {
	Articles []ArticleRecord `json:"articles"`
	Message  string          `json:"message,omitempty"`
}

// ArticleRecord is one simplified esummary entry. Pointer fields are nil
// when the summary did not carry them and are then left out of the JSON.
type ArticleRecord struct {
	PMID    string   `json:"pmid"`
	Title   *string  `json:"title,omitempty"`
	Authors []Author `json:"authors"`
	Journal *string  `json:"journal,omitempty"`
	PubDate *string  `json:"pubdate,omitempty"`
	Source  string   `json:"source"`
}

// Author mirrors an esummary author entry; all three keys are always
// written, empty or not.
type Author struct {
	Name      string `json:"name"`
	AuthType  string `json:"authtype"`
	ClusterID string `json:"clusterid"`
}

// EmptySearchResponse is returned when the identifier search comes back
// empty.
func EmptySearchResponse() *SearchResponse {
	return &SearchResponse{
		Articles: []ArticleRecord{},
		Message:  NoResultsMessage,
	}
}
