// Package google implements the Google Calendar provider on top of
// oauth2 and the calendar/v3 API.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"courseplanner/internal"
)

const (
	// sourceTag marks events created by this application in their
	// private extended properties.
	sourceTag = "course-outline"

	// assessmentColorID is Google's "tangerine" color, used for
	// midterms, finals and quizzes.
	assessmentColorID = "6"

	defaultSleep = 5 * time.Second
)

type Client struct {
	oauthCfg *oauth2.Config

	// Timezone is the IANA zone attached to pushed start/end times.
	Timezone string
}

// NewClient builds a provider from an OAuth client credentials JSON
// (the file downloaded from the Google Cloud console). redirectURL may
// be empty for the CLI login flow.
func NewClient(credJSON []byte, redirectURL, timezone string) (*Client, error) {
	oauthCfg, err := google.ConfigFromJSON(credJSON, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("google: parsing credentials file: %w", err)
	}
	if redirectURL != "" {
		oauthCfg.RedirectURL = redirectURL
	}
	return &Client{
		oauthCfg: oauthCfg,
		Timezone: timezone,
	}, nil
}

// AuthURL returns the consent URL for the web flow.
func (c *Client) AuthURL(state string) string {
	return c.oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for serialized credentials.
func (c *Client) Exchange(ctx context.Context, code string) ([]byte, error) {
	token, err := c.oauthCfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google: exchanging code: %w", err)
	}
	return json.Marshal(token)
}

// Email resolves the primary calendar id, which for Google accounts is
// the account email.
func (c *Client) Email(ctx context.Context, auth []byte) (string, error) {
	svc, err := c.calendarSvc(ctx, string(auth))
	if err != nil {
		return "", err
	}
	primary, err := svc.CalendarList.Get("primary").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("google: reading primary calendar: %w", err)
	}
	return primary.Id, nil
}

// Login runs the local-callback browser flow used by the configure
// command: it spins up a one-shot HTTP listener, hands the consent URL
// to openURL and waits for Google to redirect back with the code.
func (c *Client) Login(ctx context.Context, openURL func(authURL string)) ([]byte, error) {
	cfg := *c.oauthCfg
	cfg.RedirectURL = "http://localhost:8080/coursecal"

	state := fmt.Sprintf("coursecal-%d", time.Now().UTC().Nanosecond())
	openURL(cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))

	mux := http.NewServeMux()
	server := &http.Server{
		Addr:    ":8080",
		Handler: mux,
	}

	var (
		token   *oauth2.Token
		authErr error
	)

	mux.HandleFunc("/coursecal", func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			go server.Shutdown(ctx)
		}()

		query := req.URL.Query()
		if query.Get("state") != state {
			authErr = errors.New("oauth link is not valid")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		token, authErr = cfg.Exchange(ctx, query.Get("code"))
		if authErr != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintln(w, "Unable to retrieve token:", authErr)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "All good, you can close this window!")
	})

	serverCh := make(chan struct{})
	var svrErr error
	go func() {
		svrErr = server.ListenAndServe()
		close(serverCh)
	}()

	<-serverCh

	if svrErr != nil && svrErr != http.ErrServerClosed {
		return nil, svrErr
	}
	if authErr != nil {
		return nil, authErr
	}
	return json.Marshal(token)
}

func (c *Client) Events(ctx context.Context, acc *internal.Account, calendarID string, q internal.EventQuery) (internal.Iterator, error) {
	svc, err := c.calendarSvc(ctx, acc.Auth)
	if err != nil {
		return nil, err
	}

	call := svc.Events.List(calendarID).
		Context(ctx).
		ShowDeleted(false).
		SingleEvents(true).
		OrderBy("startTime")
	if !q.From.IsZero() {
		call = call.TimeMin(q.From.Format(time.RFC3339))
	}
	if !q.To.IsZero() {
		call = call.TimeMax(q.To.Format(time.RFC3339))
	}
	if q.SearchText != "" {
		call = call.Q(q.SearchText)
	}
	if q.MaxResults > 0 {
		call = call.MaxResults(q.MaxResults)
	}

	it := newEventIterator()
	go c.events(call, it.events)
	return it, nil
}

func (c *Client) events(call *calendar.EventsListCall, eventCh chan eventOrError) {
	defer close(eventCh)

	var nextPageToken string
	for {
		events, err := call.PageToken(nextPageToken).Do()
		if err != nil {
			if shouldRetry(err) {
				time.Sleep(defaultSleep)
				continue
			}
			eventCh <- eventOrError{err: err}
			return
		}

		for _, item := range events.Items {
			eventCh <- eventOrError{e: newRemoteEvent(item)}
		}
		nextPageToken = events.NextPageToken
		if nextPageToken == "" {
			return
		}
	}
}

// FindByAppEventID looks an event up by the private app_event_id
// property stamped on everything this application pushes. A missing
// event is (nil, nil).
func (c *Client) FindByAppEventID(ctx context.Context, acc *internal.Account, calendarID, appEventID string) (*internal.RemoteEvent, error) {
	svc, err := c.calendarSvc(ctx, acc.Auth)
	if err != nil {
		return nil, err
	}

	for {
		res, err := svc.Events.List(calendarID).
			Context(ctx).
			PrivateExtendedProperty("app_event_id="+appEventID).
			SingleEvents(true).
			MaxResults(2).
			Do()
		if err != nil {
			if shouldRetry(err) {
				time.Sleep(defaultSleep)
				continue
			}
			return nil, err
		}
		if len(res.Items) == 0 {
			return nil, nil
		}
		return newRemoteEvent(res.Items[0]), nil
	}
}

func (c *Client) GetEvent(ctx context.Context, acc *internal.Account, calendarID, id string) (*internal.RemoteEvent, error) {
	svc, err := c.calendarSvc(ctx, acc.Auth)
	if err != nil {
		return nil, err
	}
	gev, err := svc.Events.Get(calendarID, id).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return newRemoteEvent(gev), nil
}

func (c *Client) CreateEvent(ctx context.Context, acc *internal.Account, calendarID string, ev *internal.PushEvent) (*internal.RemoteEvent, error) {
	svc, err := c.calendarSvc(ctx, acc.Auth)
	if err != nil {
		return nil, err
	}
	for {
		gev, err := svc.Events.Insert(calendarID, c.newGoogleEvent(ev)).Context(ctx).Do()
		if err == nil {
			return newRemoteEvent(gev), nil
		}
		if shouldRetry(err) {
			time.Sleep(defaultSleep)
			continue
		}
		return nil, err
	}
}

func (c *Client) UpdateEvent(ctx context.Context, acc *internal.Account, calendarID, id string, ev *internal.PushEvent) (*internal.RemoteEvent, error) {
	svc, err := c.calendarSvc(ctx, acc.Auth)
	if err != nil {
		return nil, err
	}
	for {
		gev, err := svc.Events.Update(calendarID, id, c.newGoogleEvent(ev)).Context(ctx).Do()
		if err == nil {
			return newRemoteEvent(gev), nil
		}
		if shouldRetry(err) {
			time.Sleep(defaultSleep)
			continue
		}
		return nil, err
	}
}

// MoveEvent reschedules an existing event in place, preserving every
// field except start and end.
func (c *Client) MoveEvent(ctx context.Context, acc *internal.Account, calendarID, id string, start, end time.Time) (*internal.RemoteEvent, error) {
	svc, err := c.calendarSvc(ctx, acc.Auth)
	if err != nil {
		return nil, err
	}
	gev, err := svc.Events.Get(calendarID, id).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	gev.Start = &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: c.Timezone}
	gev.End = &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: c.Timezone}

	for {
		updated, err := svc.Events.Update(calendarID, id, gev).Context(ctx).Do()
		if err == nil {
			return newRemoteEvent(updated), nil
		}
		if shouldRetry(err) {
			time.Sleep(defaultSleep)
			continue
		}
		return nil, err
	}
}

func (c *Client) DeleteEvent(ctx context.Context, acc *internal.Account, calendarID, id string) error {
	svc, err := c.calendarSvc(ctx, acc.Auth)
	if err != nil {
		return err
	}
	for {
		err = svc.Events.Delete(calendarID, id).Context(ctx).Do()
		if err == nil || alreadyDeleted(err) {
			return nil
		}
		if shouldRetry(err) {
			time.Sleep(defaultSleep)
			continue
		}
		return err
	}
}

func (c *Client) calendarSvc(ctx context.Context, auth string) (*calendar.Service, error) {
	var tok *oauth2.Token
	err := json.Unmarshal([]byte(auth), &tok)
	if err != nil {
		return nil, fmt.Errorf("google: decoding stored token: %w", err)
	}
	httpClient := c.oauthCfg.Client(ctx, tok)
	return calendar.NewService(ctx, option.WithHTTPClient(httpClient))
}

func (c *Client) newGoogleEvent(ev *internal.PushEvent) *calendar.Event {
	end := ev.End
	if end.IsZero() {
		end = ev.Start.Add(time.Hour)
	}

	gev := &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start: &calendar.EventDateTime{
			DateTime: ev.Start.Format(time.RFC3339),
			TimeZone: c.Timezone,
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: c.Timezone,
		},
		Recurrence: ev.Recurrence,
		Reminders: &calendar.EventReminders{
			UseDefault:      true,
			ForceSendFields: []string{"UseDefault"},
		},
	}
	if ev.Assessment {
		gev.ColorId = assessmentColorID
	}
	if ev.AppEventID != "" {
		gev.ExtendedProperties = &calendar.EventExtendedProperties{
			Private: map[string]string{
				"source":       sourceTag,
				"course_id":    ev.CourseID,
				"app_event_id": ev.AppEventID,
			},
		}
	}
	return gev
}

func shouldRetry(err error) bool {
	return errIsReason(err, "rateLimitExceeded")
}

func alreadyDeleted(err error) bool {
	return errIsReason(err, "deleted")
}

func errIsReason(err error, reason string) bool {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return false
	}

	for _, err := range gErr.Errors {
		switch err.Reason {
		case reason:
			return true
		}
	}
	return false
}
