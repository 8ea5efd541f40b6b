//go:build integration

package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"roadAccident/internal/domain"
	"roadAccident/pkg/e"
)

var testClient *goredis.Client

func TestMain(m *testing.M) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Println("cannot start container:", err)
		os.Exit(1)
	}

	host, _ := c.Host(ctx)
	port, _ := c.MappedPort(ctx, "6379/tcp")

	testClient = goredis.NewClient(&goredis.Options{Addr: host + ":" + port.Port()})
	if err := testClient.Ping(ctx).Err(); err != nil {
		fmt.Println("ping:", err)
		_ = c.Terminate(ctx)
		os.Exit(1)
	}

	code := m.Run()

	_ = testClient.Close()
	_ = c.Terminate(ctx)
	os.Exit(code)
}

func TestSMSQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	q := NewSMSQueue(testClient, "test:sms:"+uuid.NewString())

	first, second := uuid.New(), uuid.New()
	if err := q.Enqueue(ctx, domain.SMSJob{ReportID: first}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, domain.SMSJob{ReportID: second}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got, err := q.BRPop(ctx, time.Second)
	if err != nil {
		t.Fatalf("BRPop: %v", err)
	}
	if got.ReportID != first || got.EnqueuedAt.IsZero() {
		t.Fatalf("expected first job, got %+v", got)
	}
	if got, _ := q.BRPop(ctx, time.Second); got.ReportID != second {
		t.Fatalf("expected second job, got %+v", got)
	}

	if _, err := q.BRPop(ctx, time.Second); !errors.Is(err, e.ErrQueueEmpty) {
		t.Fatalf("expected ErrQueueEmpty, got %v", err)
	}
}

func TestSMSQueue_Claim(t *testing.T) {
	ctx := context.Background()
	q := NewSMSQueue(testClient, "test:sms:"+uuid.NewString())
	id := uuid.New()

	ok, err := q.Claim(ctx, id, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first claim should win, ok=%v err=%v", ok, err)
	}
	if ok, _ := q.Claim(ctx, id, time.Minute); ok {
		t.Fatalf("second claim must lose")
	}
	if err := q.Release(ctx, id); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if ok, _ := q.Claim(ctx, id, time.Minute); !ok {
		t.Fatalf("claim after release should win")
	}
}

func TestStatsCache_SetGetInvalidate(t *testing.T) {
	ctx := context.Background()
	c := newStatsCache(testClient, "test:stats:"+uuid.NewString())

	miss, gen, err := c.Get(ctx)
	if err != nil || miss != nil || gen != 0 {
		t.Fatalf("expected miss at generation 0, got %+v gen=%d err=%v", miss, gen, err)
	}

	want := &domain.ReportStats{Total: 3, Approved: 1, Rejected: 1, AccuracyRate: 0.5}
	stored, err := c.Set(ctx, want, time.Minute, gen)
	if err != nil || !stored {
		t.Fatalf("Set: stored=%v err=%v", stored, err)
	}
	got, _, err := c.Get(ctx)
	if err != nil || got == nil || *got != *want {
		t.Fatalf("expected %+v got %+v err=%v", want, got, err)
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	got, gen, _ = c.Get(ctx)
	if got != nil || gen != 1 {
		t.Fatalf("expected miss at generation 1 after invalidate, got %+v gen=%d", got, gen)
	}
}

func TestStatsCache_SetAfterInvalidate_Refused(t *testing.T) {
	ctx := context.Background()
	c := newStatsCache(testClient, "test:stats:"+uuid.NewString())

	_, gen, err := c.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	// a write lands between the read and the store
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	stale := &domain.ReportStats{Total: 1, Pending: 1}
	stored, err := c.Set(ctx, stale, time.Minute, gen)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if stored {
		t.Fatalf("snapshot from before the invalidate must not be stored")
	}
	if got, _, _ := c.Get(ctx); got != nil {
		t.Fatalf("expected miss, got %+v", got)
	}
}
