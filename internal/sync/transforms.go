package sync

import (
	"time"

	"github.com/analytics-sync/backend/internal/jsonapi"
	"github.com/analytics-sync/backend/internal/model"
)

// The Transform functions below decode one upstream JSON:API resource into a
// local row. Attribute names follow the upstream platform's own snake_case
// convention; relationship linkage follows the standard JSON:API
// `relationships.<name>.data.id` shape.

func optionalString(r jsonapi.Resource, field string) *string {
	v := r.Attributes.Get(field)
	if !v.Exists() || v.String() == "" {
		return nil
	}
	s := v.String()
	return &s
}

func optionalTime(r jsonapi.Resource, field string) *time.Time {
	v := r.Attributes.Get(field)
	if !v.Exists() || v.String() == "" {
		return nil
	}
	t := v.Time()
	return &t
}

func attrTime(r jsonapi.Resource, field string, fallback time.Time) time.Time {
	v := r.Attributes.Get(field)
	if !v.Exists() || v.String() == "" {
		return fallback
	}
	return v.Time()
}

func relatedID(r jsonapi.Resource, relationship string) string {
	return r.Relationships.Get(relationship + ".data.id").String()
}

// TransformMetric decodes a "metric" resource.
func TransformMetric(r jsonapi.Resource) (model.Metric, time.Time, bool) {
	created := attrTime(r, "created", time.Now().UTC())
	updated := attrTime(r, "updated", created)

	row := model.Metric{
		ID:              r.ID,
		Name:            r.Attributes.Get("name").String(),
		Type:            r.Attributes.Get("integration.object").String(),
		Description:     r.Attributes.Get("description").String(),
		IntegrationID:   r.Attributes.Get("integration.id").String(),
		IntegrationName: r.Attributes.Get("integration.name").String(),
		IntegrationCat:  r.Attributes.Get("integration.category").String(),
		CreatedAt:       created,
		UpdatedAt:       updated,
	}
	row.Integration = model.Integration{
		ID:       row.IntegrationID,
		Name:     row.IntegrationName,
		Category: row.IntegrationCat,
	}
	return row, updated, true
}

// TransformProfile decodes a "profile" resource.
func TransformProfile(r jsonapi.Resource) (model.Profile, time.Time, bool) {
	created := attrTime(r, "created", time.Now().UTC())
	updated := attrTime(r, "updated", created)

	row := model.Profile{
		ID:             r.ID,
		Email:          optionalString(r, "email"),
		Phone:          optionalString(r, "phone_number"),
		ExternalID:     optionalString(r, "external_id"),
		FirstName:      optionalString(r, "first_name"),
		LastName:       optionalString(r, "last_name"),
		PropertiesBlob: r.Attributes.Get("properties").Raw,
		LastEventAt:    optionalTime(r, "last_event_date"),
		CreatedAt:      created,
		UpdatedAt:      updated,
	}
	return row, updated, true
}

// TransformEvent decodes an "event" resource. Events are append-only, so
// their watermark is the event's own timestamp rather than an "updated"
// attribute the upstream doesn't send for this resource type.
func TransformEvent(r jsonapi.Resource) (model.Event, time.Time, bool) {
	ts := attrTime(r, "datetime", time.Now().UTC())

	metricID := relatedID(r, "metric")
	profileID := relatedID(r, "profile")
	if metricID == "" || profileID == "" {
		return model.Event{}, time.Time{}, false
	}

	row := model.Event{
		ID:             r.ID,
		MetricID:       metricID,
		ProfileID:      profileID,
		Timestamp:      ts,
		PropertiesBlob: r.Attributes.Get("event_properties").Raw,
		RawBlob:        string(r.Raw),
	}

	if v := r.Attributes.Get("value"); v.Exists() {
		d := model.NewDecimalFromFloat(v.Float())
		row.Value = &d
	}

	return row, ts, true
}

func decodeCounters(r jsonapi.Resource) model.EntityCounters {
	counters := model.EntityCounters{
		SentCount:       r.Attributes.Get("sent_count").Int(),
		OpenCount:       r.Attributes.Get("open_count").Int(),
		ClickCount:      r.Attributes.Get("click_count").Int(),
		ConversionCount: r.Attributes.Get("conversion_count").Int(),
	}
	if rev := r.Attributes.Get("revenue"); rev.Exists() {
		counters.Revenue = model.NewDecimalFromFloat(rev.Float())
	}
	return counters
}

// TransformCampaign decodes a "campaign" resource.
func TransformCampaign(r jsonapi.Resource) (model.Campaign, time.Time, bool) {
	created := attrTime(r, "created_at", time.Now().UTC())
	updated := attrTime(r, "updated_at", created)

	row := model.Campaign{
		ID:             r.ID,
		Name:           r.Attributes.Get("name").String(),
		Status:         r.Attributes.Get("status").String(),
		EntityCounters: decodeCounters(r),
		MetadataBlob:   r.Attributes.Get("send_options").Raw,
		CreatedAt:      created,
		UpdatedAt:      updated,
	}
	return row, updated, true
}

// TransformFlow decodes a "flow" resource.
func TransformFlow(r jsonapi.Resource) (model.Flow, time.Time, bool) {
	created := attrTime(r, "created", time.Now().UTC())
	updated := attrTime(r, "updated", created)

	row := model.Flow{
		ID:             r.ID,
		Name:           r.Attributes.Get("name").String(),
		Status:         r.Attributes.Get("status").String(),
		EntityCounters: decodeCounters(r),
		MetadataBlob:   r.Attributes.Get("trigger_type").String(),
		CreatedAt:      created,
		UpdatedAt:      updated,
	}
	return row, updated, true
}

// TransformForm decodes a "form" resource.
func TransformForm(r jsonapi.Resource) (model.Form, time.Time, bool) {
	created := attrTime(r, "created_at", time.Now().UTC())
	updated := attrTime(r, "updated_at", created)

	row := model.Form{
		ID:             r.ID,
		Name:           r.Attributes.Get("name").String(),
		Status:         r.Attributes.Get("status").String(),
		EntityCounters: decodeCounters(r),
		CreatedAt:      created,
		UpdatedAt:      updated,
	}
	return row, updated, true
}

// TransformSegment decodes a "segment" resource.
func TransformSegment(r jsonapi.Resource) (model.Segment, time.Time, bool) {
	created := attrTime(r, "created", time.Now().UTC())
	updated := attrTime(r, "updated", created)

	row := model.Segment{
		ID:             r.ID,
		Name:           r.Attributes.Get("name").String(),
		Status:         r.Attributes.Get("status").String(),
		EntityCounters: decodeCounters(r),
		MetadataBlob:   r.Attributes.Get("definition").Raw,
		CreatedAt:      created,
		UpdatedAt:      updated,
	}
	return row, updated, true
}
