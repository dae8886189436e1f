package availability

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/vidinsight-tech/queryon/internal/model"
)

const freeBusyEndpoint = "https://www.googleapis.com/calendar/v3/freeBusy"

// CredentialSource resolves a per-resource Google OAuth2 token, decrypted
// from CalendarResource.Credentials by the caller (internal/crypto).
// Grounded on the teacher's ai/llm.go provider-credential pattern: a narrow
// interface so the token backing store stays outside this package.
type CredentialSource interface {
	TokenFor(ctx context.Context, resource *model.CalendarResource) (*oauth2.Token, error)
}

// GoogleFreeBusyProvider fetches busy intervals from the Google Calendar
// freeBusy API for external calendar resources. Any failure — expired
// token, network error, malformed response — is surfaced as an error so
// the caller (availability.Service.GetSlots) can degrade gracefully rather
// than fail the turn, mirroring the Python original's broad try/except
// around _fetch_google_busy.
type GoogleFreeBusyProvider struct {
	credentials CredentialSource
	httpClient  *http.Client
}

// NewGoogleFreeBusyProvider builds a provider bound to a credential source.
func NewGoogleFreeBusyProvider(credentials CredentialSource) *GoogleFreeBusyProvider {
	return &GoogleFreeBusyProvider{
		credentials: credentials,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

type freeBusyRequest struct {
	TimeMin string   `json:"timeMin"`
	TimeMax string   `json:"timeMax"`
	Items   []calRef `json:"items"`
}

type calRef struct {
	ID string `json:"id"`
}

type freeBusyResponse struct {
	Calendars map[string]struct {
		Busy []struct {
			Start string `json:"start"`
			End   string `json:"end"`
		} `json:"busy"`
	} `json:"calendars"`
}

// FreeBusy fetches the day's busy intervals for resource.ExternalCalID,
// converting each Google busy window into resource-local minutes-since-
// midnight. Windows outside [00:00, 24:00) of date are clamped.
func (p *GoogleFreeBusyProvider) FreeBusy(ctx context.Context, resource *model.CalendarResource, date time.Time) ([]TimeRange, error) {
	token, err := p.credentials.TokenFor(ctx, resource)
	if err != nil {
		return nil, errors.Wrap(err, "google freebusy: credential lookup failed")
	}

	loc := time.UTC
	if resource.Timezone != "" {
		if tz, err := time.LoadLocation(resource.Timezone); err == nil {
			loc = tz
		}
	}
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.Add(24 * time.Hour)

	reqBody, err := json.Marshal(freeBusyRequest{
		TimeMin: dayStart.Format(time.RFC3339),
		TimeMax: dayEnd.Format(time.RFC3339),
		Items:   []calRef{{ID: resource.ExternalCalID}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "google freebusy: encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, freeBusyEndpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "google freebusy: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	token.SetAuthHeader(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "google freebusy: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("google freebusy: unexpected status %d", resp.StatusCode)
	}

	var parsed freeBusyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "google freebusy: decode response")
	}

	cal, ok := parsed.Calendars[resource.ExternalCalID]
	if !ok {
		return nil, nil
	}

	var ranges []TimeRange
	for _, busy := range cal.Busy {
		start, err := time.Parse(time.RFC3339, busy.Start)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, busy.End)
		if err != nil {
			continue
		}
		start = start.In(loc)
		end = end.In(loc)
		ranges = append(ranges, TimeRange{
			StartMinutes: clampMinutes(start, dayStart),
			EndMinutes:   clampMinutes(end, dayStart),
		})
	}
	return ranges, nil
}

func clampMinutes(t, dayStart time.Time) int {
	m := int(t.Sub(dayStart).Minutes())
	if m < 0 {
		return 0
	}
	if m > 24*60 {
		return 24 * 60
	}
	return m
}
