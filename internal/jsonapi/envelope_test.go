package jsonapi

import "testing"

const samplePage = `{
  "data": [
    {"type": "campaign", "id": "c1", "attributes": {"name": "Spring Sale", "status": "sent"}},
    {"type": "campaign", "id": "c2", "attributes": {"name": "Summer Sale", "status": "draft"}}
  ],
  "included": [
    {"type": "tag", "id": "t1", "attributes": {"name": "promo"}}
  ],
  "links": {
    "self": "https://a.klaviyo.com/api/campaigns",
    "next": "https://a.klaviyo.com/api/campaigns?page%5Bcursor%5D=abc123"
  }
}`

const lastPage = `{"data": [], "links": {"self": "x", "next": null}}`

func TestDecodePage(t *testing.T) {
	page, err := DecodePage([]byte(samplePage))
	if err != nil {
		t.Fatalf("DecodePage() error = %v", err)
	}

	if len(page.Data) != 2 {
		t.Fatalf("len(Data) = %d, want 2", len(page.Data))
	}
	if page.Data[0].ID != "c1" || page.Data[0].Type != "campaign" {
		t.Errorf("Data[0] = %+v", page.Data[0])
	}
	if got := page.Data[0].Attributes.Get("name").String(); got != "Spring Sale" {
		t.Errorf("Data[0].Attributes.name = %q", got)
	}
	if len(page.Included) != 1 {
		t.Fatalf("len(Included) = %d, want 1", len(page.Included))
	}
	if page.NextLink == "" {
		t.Errorf("expected a next link")
	}
}

func TestDecodePage_LastPage(t *testing.T) {
	page, err := DecodePage([]byte(lastPage))
	if err != nil {
		t.Fatalf("DecodePage() error = %v", err)
	}
	if len(page.Data) != 0 {
		t.Errorf("expected no data, got %d", len(page.Data))
	}
	if page.NextLink != "" {
		t.Errorf("expected empty NextLink, got %q", page.NextLink)
	}
}

func TestCursorFromNextLink(t *testing.T) {
	cursor, err := CursorFromNextLink("https://a.klaviyo.com/api/campaigns?page%5Bcursor%5D=abc123")
	if err != nil {
		t.Fatalf("CursorFromNextLink() error = %v", err)
	}
	if cursor != "abc123" {
		t.Errorf("cursor = %q, want abc123", cursor)
	}
}

func TestDecodePage_InvalidBody(t *testing.T) {
	if _, err := DecodePage([]byte("")); err == nil {
		t.Fatalf("expected an error for empty body")
	}
}
