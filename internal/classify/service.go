package classify

import "taller/internal/core"

// Source tells how a classification was reached.
type Source string

const (
	SourceTag     Source = "tag"
	SourceKeyword Source = "keyword"
	SourceMarker  Source = "marker"
	SourceDefault Source = "default"
	SourceNone    Source = "none"
)

// ItemClass is the explainable result of classifying one order item.
type ItemClass struct {
	Domain  core.ServiceDomain `json:"domain"`
	Source  Source             `json:"source"`
	Keyword string             `json:"keyword,omitempty"`
}

// NeedsReview reports whether no tag or keyword matched.
func (c ItemClass) NeedsReview() bool {
	return c.Source == SourceNone
}

// ServiceClassifier assigns order items to a service domain.
type ServiceClassifier struct {
	tags     Table
	keywords Table
}

func NewServiceClassifier(t Tables) *ServiceClassifier {
	return &ServiceClassifier{tags: t.ServiceTags, keywords: t.Services}
}

// Classify checks the explicit tag first, then name and description keywords.
func (c *ServiceClassifier) Classify(it core.Item) ItemClass {
	if label, kw, ok := c.tags.MatchExact(it.ServiceType); ok {
		return ItemClass{Domain: core.ServiceDomain(label), Source: SourceTag, Keyword: kw}
	}
	if label, kw, ok := c.keywords.Match(it.Name + " " + it.Description); ok {
		return ItemClass{Domain: core.ServiceDomain(label), Source: SourceKeyword, Keyword: kw}
	}
	return ItemClass{Domain: core.Other, Source: SourceNone}
}
