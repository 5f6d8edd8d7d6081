// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// plainText strips markup from an HTML fragment such as a Wikipedia search
// snippet (`<span class="searchmatch">term</span> ...`).
func plainText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return collapseSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<div>" + fragment + "</div>"))
	if err != nil {
		return collapseSpace(fragment)
	}
	return collapseSpace(doc.Find("div").First().Text())
}

// firstAnchor returns the text and href of the first link in an HTML
// fragment, as found in DuckDuckGo's "Result" field.
func firstAnchor(fragment string) (text, href string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", ""
	}
	a := doc.Find("a").First()
	href, _ = a.Attr("href")
	return collapseSpace(a.Text()), href
}
