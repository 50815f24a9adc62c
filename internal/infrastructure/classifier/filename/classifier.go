package filename

import (
	"strings"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
)

type rule struct {
	keywords []string
	category domain.Category
}

// rules are evaluated in order; the first matching keyword wins.
var rules = []rule{
	{keywords: []string{"ccnl"}, category: domain.CategoryCCNL},
	{keywords: []string{"circolare", "miur"}, category: domain.CategoryCirculars},
	{keywords: []string{"contratto", "integrativo"}, category: domain.CategoryIntegrativeContract},
	{keywords: []string{"delibera"}, category: domain.CategoryResolutions},
	{keywords: []string{"ferie", "permessi"}, category: domain.CategoryLeaveAndVacation},
	{keywords: []string{"supplenz", "gps"}, category: domain.CategorySubstituteTeaching},
}

type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

func (c *Classifier) Classify(name string) domain.Category {
	return Classify(name)
}

// Classify never fails: unmatched names fall back to general documents.
func Classify(name string) domain.Category {
	lower := strings.ToLower(name)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.category
			}
		}
	}
	return domain.CategoryGeneralDocuments
}
