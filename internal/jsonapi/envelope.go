package jsonapi

import (
	"fmt"
	"net/url"

	"github.com/tidwall/gjson"
)

// Resource is a single JSON:API resource object, decoded loosely: the
// envelope's `type`/`id` fields are strict, but `attributes` stays raw JSON
// since each resource type has its own attribute schema decoded downstream
// by the caller (spec §9's "tagged variants" re-architecture note).
type Resource struct {
	Type          string          `json:"type"`
	ID            string          `json:"id"`
	Attributes    gjson.Result    `json:"-"`
	Relationships gjson.Result    `json:"-"`
	Raw           []byte          `json:"-"`
}

// Page is one decoded page of a JSON:API list response.
type Page struct {
	Data     []Resource
	Included []Resource
	NextLink string // empty when this is the last page
}

// DecodePage parses a raw JSON:API response body into a Page. The dynamic
// envelope fields (links.next, data[].attributes, included[]) are pulled
// with gjson rather than a fully strict struct, since their shape varies
// per resource type and a single schema can't describe all of them.
func DecodePage(body []byte) (Page, error) {
	root := gjson.ParseBytes(body)
	if !root.Exists() {
		return Page{}, fmt.Errorf("jsonapi: empty or invalid response body")
	}

	var page Page

	for _, r := range root.Get("data").Array() {
		page.Data = append(page.Data, resourceFromResult(r))
	}
	for _, r := range root.Get("included").Array() {
		page.Included = append(page.Included, resourceFromResult(r))
	}

	if next := root.Get("links.next"); next.Exists() && next.String() != "" {
		page.NextLink = next.String()
	}

	return page, nil
}

func resourceFromResult(r gjson.Result) Resource {
	return Resource{
		Type:          r.Get("type").String(),
		ID:            r.Get("id").String(),
		Attributes:    r.Get("attributes"),
		Relationships: r.Get("relationships"),
		Raw:           []byte(r.Raw),
	}
}

// CursorFromNextLink extracts the `page[cursor]` query parameter from a
// `links.next` URL, since the upstream hands back a full URL rather than a
// bare cursor token.
func CursorFromNextLink(nextLink string) (string, error) {
	if nextLink == "" {
		return "", nil
	}
	u, err := url.Parse(nextLink)
	if err != nil {
		return "", fmt.Errorf("parse next link: %w", err)
	}
	return u.Query().Get("page[cursor]"), nil
}
