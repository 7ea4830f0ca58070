package postgres

import (
	"database/sql"
	"time"

	"github.com/proofofputt/putt-api/internal/domain/analytics"
)

type analyticsEventTableModel struct {
	EventType      string                `db:"event_type"`
	EventName      string                `db:"event_name"`
	SessionID      string                `db:"session_id"`
	VisitorID      string                `db:"visitor_id"`
	PlayerID       sql.NullInt64         `db:"player_id"`
	PageURL        string                `db:"page_url"`
	PagePath       string                `db:"page_path"`
	Referrer       string                `db:"referrer"`
	ReferrerSource string                `db:"referrer_source"`
	UTMSource      string                `db:"utm_source"`
	UTMMedium      string                `db:"utm_medium"`
	UTMCampaign    string                `db:"utm_campaign"`
	UTMTerm        string                `db:"utm_term"`
	UTMContent     string                `db:"utm_content"`
	Browser        string                `db:"browser"`
	OS             string                `db:"os"`
	DeviceType     string                `db:"device_type"`
	IPAddress      string                `db:"ip_address"`
	Properties     jsonb[map[string]any] `db:"properties"`
	CreatedAt      time.Time             `db:"created_at"`
}

func newAnalyticsEventTableModel(e analytics.Event) analyticsEventTableModel {
	props := e.Properties
	if props == nil {
		props = map[string]any{}
	}
	return analyticsEventTableModel{
		EventType:      e.EventType,
		EventName:      e.EventName,
		SessionID:      e.SessionID,
		VisitorID:      e.VisitorID,
		PlayerID:       nullInt64(e.PlayerID),
		PageURL:        e.PageURL,
		PagePath:       e.PagePath,
		Referrer:       e.Referrer,
		ReferrerSource: e.ReferrerSource,
		UTMSource:      e.UTM.Source,
		UTMMedium:      e.UTM.Medium,
		UTMCampaign:    e.UTM.Campaign,
		UTMTerm:        e.UTM.Term,
		UTMContent:     e.UTM.Content,
		Browser:        e.Client.Browser,
		OS:             e.Client.OS,
		DeviceType:     e.Client.Device,
		IPAddress:      e.IPAddress,
		Properties:     jsonOf(props),
		CreatedAt:      e.CreatedAt,
	}
}

type analyticsConversionTableModel struct {
	ConversionType string        `db:"conversion_type"`
	SessionID      string        `db:"session_id"`
	VisitorID      string        `db:"visitor_id"`
	PlayerID       sql.NullInt64 `db:"player_id"`
	Value          float64       `db:"conversion_value"`
	Source         string        `db:"source"`
	CreatedAt      time.Time     `db:"created_at"`
}
