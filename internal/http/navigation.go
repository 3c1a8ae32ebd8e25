package http

import (
	"net/url"
	"strings"
)

const (
	indexPage             = "/index.html"
	consumerDashboardPage = "/consumer-dashboard.html"
	providerDashboardPage = "/provider-dashboard.html"
	searchPage            = "/search.html"
)

type category struct {
	Key   string
	Title string
	Page  string
}

// categories is ordered as it appears on the home page.
var categories = []category{
	{Key: "jobs", Title: "Jobs", Page: "/jobs.html"},
	{Key: "services", Title: "Services", Page: "/services.html"},
	{Key: "products", Title: "Products", Page: "/products.html"},
	{Key: "realestate", Title: "Real estate", Page: "/realestate.html"},
}

func categoryByKey(key string) (category, bool) {
	for _, c := range categories {
		if c.Key == key {
			return c, true
		}
	}
	return category{}, false
}

// searchURL keeps the q-then-category parameter order of the search form.
func searchURL(query, categoryKey string) string {
	return searchPage + "?q=" + url.QueryEscape(query) + "&category=" + url.QueryEscape(categoryKey)
}

func dashboardFor(provider bool) string {
	if provider {
		return providerDashboardPage
	}
	return consumerDashboardPage
}

func normalizeCategory(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
