package app

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func Test_BuildReadinessChecks_NilBackends(t *testing.T) {
	dbCheck, redisCheck := BuildReadinessChecks(nil, nil)
	if dbCheck != nil || redisCheck != nil {
		t.Fatalf("nil backends must yield nil checks")
	}
}

func Test_BuildReadinessChecks_DB(t *testing.T) {
	dbCheck, _ := BuildReadinessChecks(fakePinger{}, nil)
	if err := dbCheck(context.Background()); err != nil {
		t.Fatalf("healthy pool: %v", err)
	}

	dbCheck, _ = BuildReadinessChecks(fakePinger{err: errors.New("refused")}, nil)
	if err := dbCheck(context.Background()); err == nil {
		t.Fatalf("failing pool must surface an error")
	}
}

func Test_BuildReadinessChecks_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	_, redisCheck := BuildReadinessChecks(nil, rdb)
	if err := redisCheck(context.Background()); err != nil {
		t.Fatalf("healthy redis: %v", err)
	}

	mr.Close()
	if err := redisCheck(context.Background()); err == nil {
		t.Fatalf("down redis must surface an error")
	}
}
