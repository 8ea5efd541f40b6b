//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"roadAccident/internal/domain"
	"roadAccident/pkg/e"
)

var (
	testPool *pgxpool.Pool
	tc       testcontainers.Container
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	user := "postgres"
	pass := "postgres"
	db := "postgres"

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     user,
			"POSTGRES_PASSWORD": pass,
			"POSTGRES_DB":       db,
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(90 * time.Second),
	}

	var err error
	tc, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Println("cannot start container:", err)
		os.Exit(1)
	}

	host, _ := tc.Host(ctx)
	mappedPort, _ := tc.MappedPort(ctx, "5432/tcp")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, pass, host, mappedPort.Port(), db)

	testPool, err = pgxpool.New(ctx, dsn)
	if err != nil {
		fmt.Println("pgxpool.New:", err)
		_ = tc.Terminate(ctx)
		os.Exit(1)
	}

	if err := testPool.Ping(ctx); err != nil {
		fmt.Println("pool.Ping:", err)
		testPool.Close()
		_ = tc.Terminate(ctx)
		os.Exit(1)
	}

	if err := EnsureSchema(ctx, testPool); err != nil {
		fmt.Println("EnsureSchema:", err)
		testPool.Close()
		_ = tc.Terminate(ctx)
		os.Exit(1)
	}

	code := m.Run()

	testPool.Close()
	_ = tc.Terminate(ctx)
	os.Exit(code)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func truncateAll(t *testing.T) {
	t.Helper()
	_, err := testPool.Exec(context.Background(), `TRUNCATE TABLE reports, users`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func newTestReport(phone string, createdAt time.Time) *domain.Report {
	return &domain.Report{
		Media: domain.MediaRef{
			Ref:         "report_" + uuid.NewString() + ".jpg",
			ContentType: "image/jpeg",
			SizeBytes:   2 << 20,
			Kind:        domain.MediaImage,
		},
		Location:    domain.Location{Latitude: 12.9716, Longitude: 77.5946, Address: "MG Road"},
		PhoneNumber: phone,
		Prediction: domain.Prediction{
			IsAccident:             true,
			Confidence:             0.93,
			AccidentProbability:    0.93,
			NonAccidentProbability: 0.07,
		},
		CreatedAt: createdAt,
	}
}

func approval(id uuid.UUID) domain.Transition {
	return domain.Transition{
		ID: id,
		To: domain.ReportApproved,
		Dispatch: &domain.Dispatch{
			Ambulance:  "AMB-101",
			Hospital:   "City General",
			ETA:        "15 minutes",
			ETAMinutes: 15,
			Severity:   domain.SeverityModerate,
		},
		ReviewedBy: "admin@example.com",
		ReviewedAt: time.Now().UTC(),
	}
}

func TestReportRepo_Create_SetsDefaults(t *testing.T) {
	truncateAll(t)

	repo := NewReportRepo(testPool, testLogger())
	ctx := context.Background()

	r := newTestReport("+919876543210", time.Time{})
	if err := repo.Create(ctx, r); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.ID == uuid.Nil || r.CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at to be set")
	}

	got, err := repo.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.ReportPending || got.SMSStatus != domain.SMSNotProcessed {
		t.Fatalf("unexpected status=%s sms=%s", got.Status, got.SMSStatus)
	}
	if got.Dispatch != nil {
		t.Fatalf("pending report must not carry dispatch")
	}
	if got.Prediction != r.Prediction || got.Location != r.Location {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestReportRepo_Get_NotFound(t *testing.T) {
	truncateAll(t)

	repo := NewReportRepo(testPool, testLogger())

	_, err := repo.Get(context.Background(), uuid.New())
	if !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestReportRepo_List_OrderFilterAndPaging(t *testing.T) {
	truncateAll(t)

	repo := NewReportRepo(testPool, testLogger())
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		r := newTestReport("", time.Date(2025, 1, 1, 0, 0, i, 0, time.UTC))
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, r.ID)
	}
	if _, err := repo.Transition(ctx, approval(ids[0])); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	list, err := repo.List(ctx, domain.ListReportsRequest{Skip: 0, Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != ids[2] || list[1].ID != ids[1] {
		t.Fatalf("expected newest first, got %d items", len(list))
	}

	page2, err := repo.List(ctx, domain.ListReportsRequest{Skip: 2, Limit: 2})
	if err != nil {
		t.Fatalf("List page2: %v", err)
	}
	if len(page2) != 1 || page2[0].ID != ids[0] {
		t.Fatalf("unexpected page2: %d items", len(page2))
	}

	pending := domain.ReportPending
	onlyPending, err := repo.List(ctx, domain.ListReportsRequest{Limit: 10, Status: &pending})
	if err != nil {
		t.Fatalf("List pending: %v", err)
	}
	if len(onlyPending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(onlyPending))
	}

	again, err := repo.List(ctx, domain.ListReportsRequest{Skip: 0, Limit: 2})
	if err != nil {
		t.Fatalf("List again: %v", err)
	}
	for i := range list {
		if list[i].ID != again[i].ID || list[i].UpdatedAt != again[i].UpdatedAt {
			t.Fatalf("list is not stable without writes")
		}
	}
}

func TestReportRepo_List_TwiceWithoutWrites_Identical(t *testing.T) {
	truncateAll(t)

	repo := NewReportRepo(testPool, testLogger())
	ctx := context.Background()

	// identical creation times leave the order to the id tie-break
	createdAt := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		phone := ""
		if i%2 == 0 {
			phone = "+919876543210"
		}
		if err := repo.Create(ctx, newTestReport(phone, createdAt)); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	for _, req := range []domain.ListReportsRequest{
		{Limit: 10},
		{Skip: 1, Limit: 3},
	} {
		first, err := repo.List(ctx, req)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		second, err := repo.List(ctx, req)
		if err != nil {
			t.Fatalf("List again: %v", err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("skip=%d limit=%d: list changed without writes", req.Skip, req.Limit)
		}
	}

	st1, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	st2, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats again: %v", err)
	}
	if *st1 != *st2 {
		t.Fatalf("stats changed without writes: %+v vs %+v", st1, st2)
	}
}

func TestReportRepo_ListByUser(t *testing.T) {
	truncateAll(t)

	users := NewUserRepo(testPool, testLogger())
	repo := NewReportRepo(testPool, testLogger())
	ctx := context.Background()

	u := &domain.User{Email: "Reporter@Example.com", FullName: "Reporter", PasswordHash: "x", Role: domain.RoleUser}
	if err := users.Create(ctx, u); err != nil {
		t.Fatalf("Create user: %v", err)
	}

	mine := newTestReport("", time.Time{})
	mine.UserID = &u.ID
	if err := repo.Create(ctx, mine); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, newTestReport("", time.Time{})); err != nil {
		t.Fatalf("Create anonymous: %v", err)
	}

	list, err := repo.List(ctx, domain.ListReportsRequest{Limit: 10, UserID: &u.ID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].ID != mine.ID || list[0].UserID == nil || *list[0].UserID != u.ID {
		t.Fatalf("expected only own report, got %d", len(list))
	}
}

func TestReportRepo_Transition_ExactlyOnce(t *testing.T) {
	truncateAll(t)

	repo := NewReportRepo(testPool, testLogger())
	ctx := context.Background()

	r := newTestReport("+919876543210", time.Time{})
	if err := repo.Create(ctx, r); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.Transition(ctx, approval(r.ID))
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.Status != domain.ReportApproved || got.Dispatch == nil || got.Dispatch.Ambulance != "AMB-101" {
		t.Fatalf("unexpected approved row: %+v", got)
	}
	if got.SMSStatus != domain.SMSPending {
		t.Fatalf("expected sms pending with phone, got %s", got.SMSStatus)
	}

	_, err = repo.Transition(ctx, domain.Transition{ID: r.ID, To: domain.ReportRejected, ReviewedAt: time.Now().UTC()})
	if !errors.Is(err, e.ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got: %v", err)
	}

	_, err = repo.Transition(ctx, approval(uuid.New()))
	if !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestReportRepo_Transition_RejectWithoutPhone(t *testing.T) {
	truncateAll(t)

	repo := NewReportRepo(testPool, testLogger())
	ctx := context.Background()

	r := newTestReport("", time.Time{})
	if err := repo.Create(ctx, r); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.Transition(ctx, domain.Transition{
		ID:         r.ID,
		To:         domain.ReportRejected,
		Notes:      "not an accident",
		ReviewedBy: "admin@example.com",
		ReviewedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.Status != domain.ReportRejected || got.SMSStatus != domain.SMSNoPhone || got.Dispatch != nil {
		t.Fatalf("unexpected rejected row: %+v", got)
	}
	if got.AdminNotes != "not an accident" || got.ReviewedAt == nil {
		t.Fatalf("review fields not stored: %+v", got)
	}
}

func TestReportRepo_Transition_PhoneOverride(t *testing.T) {
	truncateAll(t)

	repo := NewReportRepo(testPool, testLogger())
	ctx := context.Background()

	r := newTestReport("", time.Time{})
	if err := repo.Create(ctx, r); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tr := approval(r.ID)
	tr.PhoneNumber = "+919876543210"
	got, err := repo.Transition(ctx, tr)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.SMSStatus != domain.SMSPending || got.PhoneNumber != "+919876543210" {
		t.Fatalf("expected pending sms to the override, got %s/%q", got.SMSStatus, got.PhoneNumber)
	}

	stored, err := repo.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.PhoneNumber != "+919876543210" {
		t.Fatalf("override not stored: %q", stored.PhoneNumber)
	}
}

func TestReportRepo_Transition_EmptyOverrideKeepsPhone(t *testing.T) {
	truncateAll(t)

	repo := NewReportRepo(testPool, testLogger())
	ctx := context.Background()

	r := newTestReport("+917012345678", time.Time{})
	if err := repo.Create(ctx, r); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.Transition(ctx, domain.Transition{ID: r.ID, To: domain.ReportRejected, ReviewedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got.PhoneNumber != "+917012345678" || got.SMSStatus != domain.SMSPending {
		t.Fatalf("stored phone must survive, got %s/%q", got.SMSStatus, got.PhoneNumber)
	}
}

func TestReportRepo_Transition_ConcurrentReviewers(t *testing.T) {
	truncateAll(t)

	repo := NewReportRepo(testPool, testLogger())
	ctx := context.Background()

	r := newTestReport("+919876543210", time.Time{})
	if err := repo.Create(ctx, r); err != nil {
		t.Fatalf("Create: %v", err)
	}

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		finalized int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr := approval(r.ID)
			if i%2 == 1 {
				tr = domain.Transition{ID: r.ID, To: domain.ReportRejected, ReviewedAt: time.Now().UTC()}
			}
			_, err := repo.Transition(ctx, tr)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, e.ErrAlreadyFinalized):
				finalized++
			default:
				t.Errorf("unexpected err: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 || finalized != workers-1 {
		t.Fatalf("expected exactly one winner, got wins=%d finalized=%d", wins, finalized)
	}
}

func TestReportRepo_SetSMSOutcome_OnlyWhilePending(t *testing.T) {
	truncateAll(t)

	repo := NewReportRepo(testPool, testLogger())
	ctx := context.Background()

	r := newTestReport("+919876543210", time.Time{})
	if err := repo.Create(ctx, r); err != nil {
		t.Fatalf("Create: %v", err)
	}

	applied, err := repo.SetSMSOutcome(ctx, r.ID, domain.NotificationOutcome{Kind: domain.OutcomeSent, At: time.Now().UTC()})
	if err != nil {
		t.Fatalf("SetSMSOutcome: %v", err)
	}
	if applied {
		t.Fatalf("outcome must not apply before the transition")
	}

	if _, err := repo.Transition(ctx, approval(r.ID)); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	applied, err = repo.SetSMSOutcome(ctx, r.ID, domain.NotificationOutcome{Kind: domain.OutcomeSent, At: time.Now().UTC()})
	if err != nil || !applied {
		t.Fatalf("expected outcome applied, applied=%v err=%v", applied, err)
	}

	applied, err = repo.SetSMSOutcome(ctx, r.ID, domain.NotificationOutcome{Kind: domain.OutcomeFailed, Reason: "late"})
	if err != nil || applied {
		t.Fatalf("second outcome must be ignored, applied=%v err=%v", applied, err)
	}

	got, err := repo.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SMSStatus != domain.SMSSent || got.SMSSentAt == nil {
		t.Fatalf("expected sent with timestamp, got %s", got.SMSStatus)
	}
}

func TestReportRepo_ListStalePending(t *testing.T) {
	truncateAll(t)

	repo := NewReportRepo(testPool, testLogger())
	ctx := context.Background()

	r := newTestReport("+919876543210", time.Time{})
	if err := repo.Create(ctx, r); err != nil {
		t.Fatalf("Create: %v", err)
	}
	tr := approval(r.ID)
	tr.ReviewedAt = time.Now().UTC().Add(-time.Hour)
	if _, err := repo.Transition(ctx, tr); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	ids, err := repo.ListStalePending(ctx, time.Now().UTC().Add(-5*time.Minute), 10)
	if err != nil {
		t.Fatalf("ListStalePending: %v", err)
	}
	if len(ids) != 1 || ids[0] != r.ID {
		t.Fatalf("expected the stale report, got %v", ids)
	}

	ids, err = repo.ListStalePending(ctx, time.Now().UTC().Add(-2*time.Hour), 10)
	if err != nil {
		t.Fatalf("ListStalePending: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected nothing older than two hours, got %v", ids)
	}
}

func TestReportRepo_Delete_AnyStatus(t *testing.T) {
	truncateAll(t)

	repo := NewReportRepo(testPool, testLogger())
	ctx := context.Background()

	r := newTestReport("", time.Time{})
	if err := repo.Create(ctx, r); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := repo.Transition(ctx, approval(r.ID)); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	media, err := repo.Delete(ctx, r.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if media.Ref != r.Media.Ref {
		t.Fatalf("expected media ref %q got %q", r.Media.Ref, media.Ref)
	}

	if _, err := repo.Get(ctx, r.ID); !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got: %v", err)
	}
	if _, err := repo.Delete(ctx, r.ID); !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got: %v", err)
	}
}

func TestReportRepo_Stats(t *testing.T) {
	truncateAll(t)

	repo := NewReportRepo(testPool, testLogger())
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		r := newTestReport("", time.Time{})
		r.Prediction.IsAccident = i != 3
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, r.ID)
	}
	if _, err := repo.Transition(ctx, approval(ids[0])); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := repo.Transition(ctx, domain.Transition{ID: ids[1], To: domain.ReportRejected, ReviewedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	s, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := domain.ReportStats{Total: 4, Pending: 2, Approved: 1, Rejected: 1, AccidentsDetected: 3, NonAccidents: 1}
	if *s != want {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestUserRepo_CreateDuplicateAndUpsertAdmin(t *testing.T) {
	truncateAll(t)

	repo := NewUserRepo(testPool, testLogger())
	ctx := context.Background()

	u := &domain.User{Email: "a@example.com", FullName: "A", PasswordHash: "h1", Role: domain.RoleUser}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}

	dup := &domain.User{Email: "A@example.com", FullName: "A2", PasswordHash: "h2", Role: domain.RoleUser}
	if err := repo.Create(ctx, dup); !errors.Is(err, e.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got: %v", err)
	}

	admin := &domain.User{Email: "a@example.com", FullName: "Admin", PasswordHash: "h3"}
	if err := repo.UpsertAdmin(ctx, admin); err != nil {
		t.Fatalf("UpsertAdmin: %v", err)
	}
	if admin.ID != u.ID {
		t.Fatalf("upsert should keep the existing id")
	}

	got, err := repo.GetByEmail(ctx, "A@EXAMPLE.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.Role != domain.RoleAdmin || got.PasswordHash != "h3" {
		t.Fatalf("unexpected user %+v", got)
	}
}
