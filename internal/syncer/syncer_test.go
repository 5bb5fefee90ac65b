package syncer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"courseplanner/internal"
)

type fakeStorage struct {
	account *internal.Account
	links   map[string]string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		account: &internal.Account{Platform: "google", Email: "student@example.com", Auth: "{}"},
		links:   map[string]string{},
	}
}

func (f *fakeStorage) Account(_ context.Context, platform string) (*internal.Account, error) {
	if f.account == nil {
		return nil, errors.New("no account")
	}
	return f.account, nil
}

func (f *fakeStorage) ProviderEventID(_ context.Context, appEventID string) (string, error) {
	return f.links[appEventID], nil
}

func (f *fakeStorage) LinkEvent(_ context.Context, appEventID, providerID, _ string) error {
	f.links[appEventID] = providerID
	return nil
}

type fakeProvider struct {
	created []*internal.PushEvent
	updated []*internal.PushEvent
	remote  map[string]*internal.RemoteEvent // app_event_id -> remote
	nextID  int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{remote: map[string]*internal.RemoteEvent{}}
}

func (f *fakeProvider) AuthURL(string) string { return "" }

func (f *fakeProvider) Exchange(context.Context, string) ([]byte, error) { return nil, nil }

func (f *fakeProvider) Email(context.Context, []byte) (string, error) { return "", nil }
func (f *fakeProvider) Login(context.Context, func(string)) ([]byte, error) {
	return nil, nil
}

func (f *fakeProvider) Events(context.Context, *internal.Account, string, internal.EventQuery) (internal.Iterator, error) {
	return nil, errors.New("not used")
}

func (f *fakeProvider) FindByAppEventID(_ context.Context, _ *internal.Account, _, appEventID string) (*internal.RemoteEvent, error) {
	return f.remote[appEventID], nil
}

func (f *fakeProvider) GetEvent(context.Context, *internal.Account, string, string) (*internal.RemoteEvent, error) {
	return nil, errors.New("not used")
}

func (f *fakeProvider) CreateEvent(_ context.Context, _ *internal.Account, _ string, ev *internal.PushEvent) (*internal.RemoteEvent, error) {
	f.created = append(f.created, ev)
	f.nextID++
	remote := &internal.RemoteEvent{ID: fmt.Sprintf("gcal-%d", f.nextID), Summary: ev.Summary}
	f.remote[ev.AppEventID] = remote
	return remote, nil
}

func (f *fakeProvider) UpdateEvent(_ context.Context, _ *internal.Account, _ string, id string, ev *internal.PushEvent) (*internal.RemoteEvent, error) {
	f.updated = append(f.updated, ev)
	return &internal.RemoteEvent{ID: id, Summary: ev.Summary}, nil
}

func (f *fakeProvider) MoveEvent(context.Context, *internal.Account, string, string, time.Time, time.Time) (*internal.RemoteEvent, error) {
	return nil, errors.New("not used")
}

func (f *fakeProvider) DeleteEvent(context.Context, *internal.Account, string, string) error {
	return nil
}

type fakeMux struct {
	provider internal.Provider
}

func (m fakeMux) Get(platform string) (internal.Provider, error) {
	if platform != "google" {
		return nil, fmt.Errorf("calendar %q is not implemented", platform)
	}
	return m.provider, nil
}

func (m fakeMux) Providers() []string { return []string{"google"} }

func testCourse() *internal.Course {
	lectureStart := time.Date(2025, time.January, 6, 10, 0, 0, 0, time.UTC) // Monday
	return &internal.Course{
		ID: "c1",
		Events: []internal.Event{
			{
				ID:       "lec",
				CourseID: "c1",
				Title:    "Lecture",
				Type:     "class",
				Start:    lectureStart,
				End:      lectureStart.Add(50 * time.Minute),
			},
			{
				ID:       "fin",
				CourseID: "c1",
				Title:    "Final Exam",
				Type:     "final",
				Start:    time.Date(2025, time.February, 3, 9, 0, 0, 0, time.UTC),
			},
		},
	}
}

func newTestSyncer(provider internal.Provider, storage Storage) *Syncer {
	return New(nil, fakeMux{provider: provider}, storage)
}

func TestSyncCourse_ExpandsWeeklyToExamHorizon(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	s := newTestSyncer(provider, newFakeStorage())

	report, err := s.SyncCourse(context.Background(), testCourse())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	// Weekly lectures run Jan 6..27 (the Feb 3 10:00 slot is past the
	// 09:00 final horizon), plus the final itself.
	if len(report.Synced) != 5 {
		t.Fatalf("synced %d occurrences, want 5", len(report.Synced))
	}
	for _, res := range report.Synced {
		if res.Status != "created" {
			t.Fatalf("status for %s = %s, want created", res.EventID, res.Status)
		}
		if res.GCalID == "" {
			t.Fatalf("missing gcal id for %s", res.EventID)
		}
	}

	if got := report.Synced[0].EventID; got != "lec_wk0" {
		t.Fatalf("first occurrence id = %s, want lec_wk0", got)
	}
	if got := report.Synced[3].EventID; got != "lec_wk3" {
		t.Fatalf("last weekly occurrence id = %s, want lec_wk3", got)
	}

	// Weekly occurrences keep the lecture's duration.
	first := provider.created[0]
	if d := first.End.Sub(first.Start); d != 50*time.Minute {
		t.Fatalf("occurrence duration = %v, want 50m", d)
	}
	// The final is flagged as an assessment, the lecture is not.
	if provider.created[0].Assessment {
		t.Fatal("lecture flagged as assessment")
	}
	if !provider.created[4].Assessment {
		t.Fatal("final not flagged as assessment")
	}
}

func TestSyncCourse_ResyncUpdatesInsteadOfDuplicating(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	storage := newFakeStorage()
	s := newTestSyncer(provider, storage)

	course := testCourse()
	if _, err := s.SyncCourse(context.Background(), course); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	created := len(provider.created)

	report, err := s.SyncCourse(context.Background(), course)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if len(provider.created) != created {
		t.Fatalf("second sync created %d new events", len(provider.created)-created)
	}
	for _, res := range report.Synced {
		if res.Status != "updated" {
			t.Fatalf("status for %s = %s, want updated", res.EventID, res.Status)
		}
	}
}

func TestSyncCourse_RecoversLinksFromRemote(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider()
	s := newTestSyncer(provider, newFakeStorage())

	course := testCourse()
	if _, err := s.SyncCourse(context.Background(), course); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	// Fresh storage simulates a lost local database; the remote events
	// still exist and must be found via app_event_id, not recreated.
	s2 := newTestSyncer(provider, newFakeStorage())
	report, err := s2.SyncCourse(context.Background(), course)
	if err != nil {
		t.Fatalf("re-sync: %v", err)
	}
	for _, res := range report.Synced {
		if res.Status != "updated" {
			t.Fatalf("status for %s = %s, want updated", res.EventID, res.Status)
		}
	}
}

func TestSyncCourse_NotConnected(t *testing.T) {
	t.Parallel()

	storage := newFakeStorage()
	storage.account = nil
	s := newTestSyncer(newFakeProvider(), storage)

	_, err := s.SyncCourse(context.Background(), testCourse())
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestSyncCourse_EventWithoutStartReported(t *testing.T) {
	t.Parallel()

	s := newTestSyncer(newFakeProvider(), newFakeStorage())
	course := &internal.Course{
		ID:     "c2",
		Events: []internal.Event{{ID: "broken", CourseID: "c2", Title: "?", Type: "other"}},
	}

	report, err := s.SyncCourse(context.Background(), course)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(report.Synced) != 1 || report.Synced[0].Status != "error" {
		t.Fatalf("unexpected report: %+v", report.Synced)
	}
}

func TestExamHorizon(t *testing.T) {
	t.Parallel()

	jan := time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		events []internal.Event
		want   time.Time
	}{
		{
			name: "latest_final_wins",
			events: []internal.Event{
				{Type: "class", Start: mar},
				{Type: "final exam", Start: feb},
				{Type: "final", Start: jan},
			},
			want: feb,
		},
		{
			name: "no_final_falls_back_to_latest_event",
			events: []internal.Event{
				{Type: "class", Start: jan},
				{Type: "midterm", Start: feb},
			},
			want: feb,
		},
		{
			name:   "no_events",
			events: nil,
			want:   time.Time{},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := examHorizon(tc.events); !got.Equal(tc.want) {
				t.Fatalf("examHorizon = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWeeklyOccurrences(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, time.January, 6, 10, 0, 0, 0, time.UTC)

	occs := weeklyOccurrences(start, start.AddDate(0, 0, 28))
	if len(occs) != 5 {
		t.Fatalf("got %d occurrences, want 5", len(occs))
	}
	for i, occ := range occs {
		want := start.AddDate(0, 0, 7*i)
		if !occ.Equal(want) {
			t.Fatalf("occurrence %d = %v, want %v", i, occ, want)
		}
	}

	// A horizon before the start still yields the event itself.
	occs = weeklyOccurrences(start, start.AddDate(0, 0, -7))
	if len(occs) != 1 || !occs[0].Equal(start) {
		t.Fatalf("expected single occurrence at start, got %v", occs)
	}
}
