// Package model defines the entities ingested from the upstream marketing
// platform and persisted in the local store. Fields carry both `db` tags
// (sqlx) and `json` tags (API responses); monetary/aggregate fields use
// Decimal rather than float64 per the system's decimal-semantics rule.
package model

import "time"

// Integration describes the third-party system a Metric originates from.
type Integration struct {
	ID       string `db:"integration_id" json:"id"`
	Name     string `db:"integration_name" json:"name"`
	Category string `db:"integration_category" json:"category"`
}

// Metric defines a measurable event type (e.g. "Placed Order").
type Metric struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Type         string    `db:"type" json:"type"`
	Description  string    `db:"description" json:"description,omitempty"`
	Integration  Integration `db:"-" json:"integration"`
	IntegrationID   string `db:"integration_id" json:"-"`
	IntegrationName string `db:"integration_name" json:"-"`
	IntegrationCat  string `db:"integration_category" json:"-"`
	MetadataBlob string    `db:"metadata_blob" json:"metadataBlob,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
	SyncedAt     time.Time `db:"synced_at" json:"-"`
}

// Profile is an end customer known to the upstream platform.
type Profile struct {
	ID             string     `db:"id" json:"id"`
	Email          *string    `db:"email" json:"email,omitempty"`
	Phone          *string    `db:"phone" json:"phone,omitempty"`
	ExternalID     *string    `db:"external_id" json:"externalId,omitempty"`
	FirstName      *string    `db:"first_name" json:"firstName,omitempty"`
	LastName       *string    `db:"last_name" json:"lastName,omitempty"`
	PropertiesBlob string     `db:"properties_blob" json:"propertiesBlob,omitempty"`
	LastEventAt    *time.Time `db:"last_event_at" json:"lastEventAt,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
	SyncedAt       time.Time  `db:"synced_at" json:"-"`
}

// Event is a metric occurrence on a profile at a point in time. Events are
// append-only and time-partitioned.
type Event struct {
	ID             string    `db:"id" json:"id"`
	MetricID       string    `db:"metric_id" json:"metricId"`
	ProfileID      string    `db:"profile_id" json:"profileId"`
	Timestamp      time.Time `db:"timestamp" json:"timestamp"`
	Value          *Decimal  `db:"value" json:"value,omitempty"`
	PropertiesBlob string    `db:"properties_blob" json:"propertiesBlob,omitempty"`
	RawBlob        string    `db:"raw_blob" json:"rawBlob,omitempty"`
	SyncedAt       time.Time `db:"synced_at" json:"-"`
}

// EntityCounters are the denormalized performance counters shared by
// Campaign/Flow/Form/Segment.
type EntityCounters struct {
	SentCount       int64   `db:"sent_count" json:"sentCount"`
	OpenCount       int64   `db:"open_count" json:"openCount"`
	ClickCount      int64   `db:"click_count" json:"clickCount"`
	ConversionCount int64   `db:"conversion_count" json:"conversionCount"`
	Revenue         Decimal `db:"revenue" json:"revenue"`
}

// Campaign is a one-off marketing send.
type Campaign struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Status       string    `db:"status" json:"status"`
	EntityCounters
	MetadataBlob string    `db:"metadata_blob" json:"metadataBlob,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
	SyncedAt     time.Time `db:"synced_at" json:"-"`
}

// Flow is an automated, trigger-based marketing sequence.
type Flow struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Status       string    `db:"status" json:"status"`
	EntityCounters
	MetadataBlob string    `db:"metadata_blob" json:"metadataBlob,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
	SyncedAt     time.Time `db:"synced_at" json:"-"`
}

// Form is a lead-capture form.
type Form struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Status       string    `db:"status" json:"status"`
	EntityCounters
	MetadataBlob string    `db:"metadata_blob" json:"metadataBlob,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
	SyncedAt     time.Time `db:"synced_at" json:"-"`
}

// Segment is a dynamically evaluated profile grouping.
type Segment struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Status       string    `db:"status" json:"status"`
	EntityCounters
	MetadataBlob string    `db:"metadata_blob" json:"metadataBlob,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
	SyncedAt     time.Time `db:"synced_at" json:"-"`
}

// AggregatedMetric is a pre-computed bucket summary for a metric.
type AggregatedMetric struct {
	MetricID    string    `db:"metric_id" json:"metricId"`
	BucketStart time.Time `db:"bucket_start" json:"bucketStart"`
	BucketSize  string    `db:"bucket_size" json:"bucketSize"`
	Count       int64     `db:"count" json:"count"`
	SumValue    Decimal   `db:"sum_value" json:"sumValue"`
	MinValue    Decimal   `db:"min_value" json:"minValue"`
	MaxValue    Decimal   `db:"max_value" json:"maxValue"`
	AvgValue    Decimal   `db:"avg_value" json:"avgValue"`
}

// SyncStatusState enumerates the lifecycle states of a sync job.
type SyncStatusState string

const (
	SyncStateIdle      SyncStatusState = "idle"
	SyncStateRunning   SyncStatusState = "running"
	SyncStateSucceeded SyncStatusState = "succeeded"
	SyncStateFailed    SyncStatusState = "failed"
)

// SyncStatus is the per-entity-type sync bookkeeping record.
type SyncStatus struct {
	EntityType          string          `db:"entity_type" json:"entityType"`
	LastSyncStartedAt   *time.Time      `db:"last_sync_started_at" json:"lastSyncStartedAt,omitempty"`
	LastSyncCompletedAt *time.Time      `db:"last_sync_completed_at" json:"lastSyncCompletedAt,omitempty"`
	LastWatermark       time.Time       `db:"last_watermark" json:"lastWatermark"`
	Status              SyncStatusState `db:"status" json:"status"`
	RecordCount         int64           `db:"record_count" json:"recordCount"`
	ErrorMessage        *string         `db:"error_message" json:"errorMessage,omitempty"`
}

// RawAPIResponse is an optional audit record of a raw upstream payload,
// retained for a bounded window for debugging.
type RawAPIResponse struct {
	ID          string    `db:"id" json:"id"`
	Endpoint    string    `db:"endpoint" json:"endpoint"`
	PayloadBlob string    `db:"payload_blob" json:"payloadBlob"`
	ReceivedAt  time.Time `db:"received_at" json:"receivedAt"`
	APIVersion  string    `db:"api_version" json:"apiVersion"`
}

// TimeSeriesPoint is a single (timestamp, value) sample used throughout the
// analytics engine. It is independent of any specific entity so that
// preprocessing/decomposition/anomaly code can operate on it without a
// database round trip.
type TimeSeriesPoint struct {
	Timestamp time.Time
	Value     float64
}
