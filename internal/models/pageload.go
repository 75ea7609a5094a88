package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// LinkStatusUnreachable marks links that produced no HTTP status.
const LinkStatusUnreachable = 999

// LinkStatus is the outcome of probing one outbound link.
type LinkStatus struct {
	URL    string
	Status int
}

// String renders "<status> <url>", the form known-issue patterns match against.
func (l LinkStatus) String() string {
	if l.Status == LinkStatusUnreachable {
		return fmt.Sprintf("%d %s no errorcode, offline?", l.Status, l.URL)
	}
	return fmt.Sprintf("%d %s", l.Status, l.URL)
}

// LinkValidation summarizes the links found on one page.
type LinkValidation struct {
	TotalLinks          int      `json:"totalLinks"`
	ValidLinks          int      `json:"validLinks"`
	Errors404           []string `json:"errors404"`
	Errors999           []string `json:"errors999"`
	KnownIssuesFiltered int      `json:"knownIssuesFiltered"`
}

// PageLoadResult is the health of one page.
type PageLoadResult struct {
	URL            string         `json:"url"`
	StartTime      time.Time      `json:"startTime"`
	EndTime        time.Time      `json:"endTime"`
	Status         string         `json:"status"`
	DurationMillis int64          `json:"duration"`
	PageLoadStatus int            `json:"pageLoadStatus"`
	Screenshots    []string       `json:"screenshots"`
	LinkValidation LinkValidation `json:"linkValidation"`
	CriticalErrors []string       `json:"criticalErrors"`
	Errors         []string       `json:"errors"`
}

// Passed reports whether the page check passed.
func (r *PageLoadResult) Passed() bool {
	return r.Status == "passed"
}

// PageLoadSummary aggregates a page-load run.
type PageLoadSummary struct {
	TotalURLs        int    `json:"totalUrls"`
	TotalLinks       int    `json:"totalLinks"`
	Total404Errors   int    `json:"total404Errors"`
	Total999Errors   int    `json:"total999Errors"`
	TotalScreenshots int    `json:"totalScreenshots"`
	SuccessRate      string `json:"successRate"`
}

// PageLoadReport is the JSON artifact of a page-load run.
type PageLoadReport struct {
	RunID       string           `json:"runId"`
	StartTime   time.Time        `json:"startTime"`
	EndTime     time.Time        `json:"endTime"`
	TotalTests  int              `json:"totalTests"`
	PassedTests int              `json:"passedTests"`
	FailedTests int              `json:"failedTests"`
	Tests       []PageLoadResult `json:"tests"`
	Summary     PageLoadSummary  `json:"summary"`
}

// Add records a page result and updates the summary.
func (r *PageLoadReport) Add(res PageLoadResult) {
	r.Tests = append(r.Tests, res)
	r.TotalTests++
	if res.Passed() {
		r.PassedTests++
	} else {
		r.FailedTests++
	}
	r.Summary.TotalURLs++
	r.Summary.TotalLinks += res.LinkValidation.TotalLinks
	r.Summary.Total404Errors += len(res.LinkValidation.Errors404)
	r.Summary.Total999Errors += len(res.LinkValidation.Errors999)
	r.Summary.TotalScreenshots += len(res.Screenshots)
	r.Summary.SuccessRate = fmt.Sprintf("%.2f%%", float64(r.PassedTests)*100/float64(r.TotalTests))
}

// WildcardPattern matches whole strings where '*' stands for any run of characters.
type WildcardPattern struct {
	re *regexp.Regexp
}

// CompileWildcard compiles a '*' wildcard pattern.
func CompileWildcard(pattern string) WildcardPattern {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return WildcardPattern{re: regexp.MustCompile("^" + strings.Join(parts, ".*") + "$")}
}

// Match reports whether s matches the pattern.
func (w WildcardPattern) Match(s string) bool {
	return w.re.MatchString(s)
}
