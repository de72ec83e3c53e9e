package googleapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// CalendarEvent is the canonical event shape returned by the adapter
type CalendarEvent struct {
	ID          string   `json:"id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	StartTime   string   `json:"startTime"`
	EndTime     string   `json:"endTime"`
	Location    string   `json:"location,omitempty"`
	Attendees   []string `json:"attendees,omitempty"`
	HTMLLink    string   `json:"htmlLink,omitempty"`
}

// EventListParams filters an event listing
type EventListParams struct {
	TimeMin    string
	TimeMax    string
	MaxResults int
}

// CalendarClient is a stateless Calendar v3 adapter
type CalendarClient struct {
	baseURL string
}

// NewCalendarClient creates a Calendar adapter. baseURL overrides the
// production endpoint for tests; empty means production.
func NewCalendarClient(baseURL string) *CalendarClient {
	if baseURL == "" {
		baseURL = defaultCalendarBase
	}
	return &CalendarClient{baseURL: baseURL}
}

// googleEvent is the Calendar v3 wire shape
type googleEvent struct {
	ID          string `json:"id,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	HTMLLink    string `json:"htmlLink,omitempty"`
	Start       *googleEventTime `json:"start,omitempty"`
	End         *googleEventTime `json:"end,omitempty"`
	Attendees   []googleAttendee `json:"attendees,omitempty"`
}

type googleEventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type googleAttendee struct {
	Email string `json:"email"`
}

func toWire(event *CalendarEvent) *googleEvent {
	wire := &googleEvent{
		Summary:     event.Title,
		Description: event.Description,
		Location:    event.Location,
		Start:       &googleEventTime{DateTime: event.StartTime},
		End:         &googleEventTime{DateTime: event.EndTime},
	}
	for _, email := range event.Attendees {
		wire.Attendees = append(wire.Attendees, googleAttendee{Email: email})
	}
	return wire
}

func fromWire(wire *googleEvent) CalendarEvent {
	event := CalendarEvent{
		ID:          wire.ID,
		Title:       wire.Summary,
		Description: wire.Description,
		Location:    wire.Location,
		HTMLLink:    wire.HTMLLink,
	}
	if event.Title == "" {
		event.Title = "Untitled Event"
	}
	if wire.Start != nil {
		event.StartTime = wire.Start.DateTime
		if event.StartTime == "" {
			event.StartTime = wire.Start.Date
		}
	}
	if wire.End != nil {
		event.EndTime = wire.End.DateTime
		if event.EndTime == "" {
			event.EndTime = wire.End.Date
		}
	}
	for _, a := range wire.Attendees {
		if a.Email != "" {
			event.Attendees = append(event.Attendees, a.Email)
		}
	}
	return event
}

// CreateEvent inserts an event into the calendar
func (c *CalendarClient) CreateEvent(ctx context.Context, accessToken, calendarID string, event *CalendarEvent) (*CalendarEvent, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(calendarID))

	var created googleEvent
	if err := doJSON(ctx, "calendar", http.MethodPost, endpoint, accessToken, toWire(event), &created); err != nil {
		return nil, err
	}
	result := fromWire(&created)
	return &result, nil
}

// ListEvents returns upcoming events ordered by start time
func (c *CalendarClient) ListEvents(ctx context.Context, accessToken, calendarID string, params EventListParams) ([]CalendarEvent, error) {
	if calendarID == "" {
		calendarID = "primary"
	}

	q := url.Values{}
	timeMin := params.TimeMin
	if timeMin == "" {
		timeMin = time.Now().UTC().Format(time.RFC3339)
	}
	q.Set("timeMin", timeMin)
	if params.TimeMax != "" {
		q.Set("timeMax", params.TimeMax)
	}
	maxResults := params.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	q.Set("maxResults", strconv.Itoa(maxResults))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")

	endpoint := fmt.Sprintf("%s/calendars/%s/events?%s", c.baseURL, url.PathEscape(calendarID), q.Encode())

	var list struct {
		Items []googleEvent `json:"items"`
	}
	if err := doJSON(ctx, "calendar", http.MethodGet, endpoint, accessToken, nil, &list); err != nil {
		return nil, err
	}

	events := make([]CalendarEvent, 0, len(list.Items))
	for i := range list.Items {
		events = append(events, fromWire(&list.Items[i]))
	}
	return events, nil
}

// GetEvent fetches a single event by id
func (c *CalendarClient) GetEvent(ctx context.Context, accessToken, calendarID, eventID string) (*CalendarEvent, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s", c.baseURL, url.PathEscape(calendarID), url.PathEscape(eventID))

	var wire googleEvent
	if err := doJSON(ctx, "calendar", http.MethodGet, endpoint, accessToken, nil, &wire); err != nil {
		return nil, err
	}
	result := fromWire(&wire)
	return &result, nil
}

// UpdateEvent replaces an event by id
func (c *CalendarClient) UpdateEvent(ctx context.Context, accessToken, calendarID, eventID string, event *CalendarEvent) (*CalendarEvent, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s", c.baseURL, url.PathEscape(calendarID), url.PathEscape(eventID))

	var updated googleEvent
	if err := doJSON(ctx, "calendar", http.MethodPut, endpoint, accessToken, toWire(event), &updated); err != nil {
		return nil, err
	}
	result := fromWire(&updated)
	return &result, nil
}

// DeleteEvent removes an event by id
func (c *CalendarClient) DeleteEvent(ctx context.Context, accessToken, calendarID, eventID string) error {
	if calendarID == "" {
		calendarID = "primary"
	}
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s", c.baseURL, url.PathEscape(calendarID), url.PathEscape(eventID))
	return doJSON(ctx, "calendar", http.MethodDelete, endpoint, accessToken, nil, nil)
}
