package memory

import "strings"

// Domain scopes fact retrieval to a topic. The empty Domain means "no
// domain" and disables filtering. Hints from callers may carry any tag;
// Classify only ever produces the known domains below.
type Domain string

const (
	DomainNone     Domain = ""
	DomainTodo     Domain = "todo"
	DomainWriting  Domain = "writing"
	DomainLearning Domain = "learning"
	DomainTravel   Domain = "travel"
)

type domainKeywords struct {
	domain   Domain
	keywords []string
}

// classificationTable is checked in order; the first domain with a
// matching keyword wins. Keywords are lower case.
var classificationTable = []domainKeywords{
	{DomainTodo, []string{"任务", "待办", "todo", "to-do", "task", "创建", "完成", "删除", "列出", "remind"}},
	{DomainWriting, []string{"写作", "文章", "博客", "写", "编辑", "write", "writing", "article", "blog", "essay", "draft"}},
	{DomainLearning, []string{"学习", "教程", "课程", "知识", "learn", "tutorial", "course", "study"}},
	{DomainTravel, []string{"旅行", "旅游", "机票", "酒店", "travel", "trip", "flight", "hotel", "itinerary"}},
}

// Classify maps text to a known domain by case-insensitive keyword
// substring match. It reports false when nothing matches.
func Classify(text string) (Domain, bool) {
	lower := strings.ToLower(text)
	for _, row := range classificationTable {
		for _, kw := range row.keywords {
			if strings.Contains(lower, kw) {
				return row.domain, true
			}
		}
	}
	return DomainNone, false
}

// KnownDomains lists the domains Classify can return, in table order.
func KnownDomains() []Domain {
	out := make([]Domain, len(classificationTable))
	for i, row := range classificationTable {
		out[i] = row.domain
	}
	return out
}

// ParseDomain normalizes a caller-supplied tag.
func ParseDomain(s string) Domain {
	return Domain(strings.ToLower(strings.TrimSpace(s)))
}

// Matches reports whether a fact tagged tag belongs to d.
func (d Domain) Matches(tag string) bool {
	return strings.EqualFold(strings.TrimSpace(tag), string(d))
}

func (d Domain) String() string {
	return string(d)
}
