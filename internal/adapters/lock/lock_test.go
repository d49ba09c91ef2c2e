package lock_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/patternwatch/internal/adapters/lock"
)

func TestLocal(t *testing.T) {
	Convey("Given a local lock", t, func() {
		ctx := context.Background()
		l := lock.NewLocal()

		Convey("When it is acquired", func() {
			release, err := l.TryAcquire(ctx)
			So(err, ShouldBeNil)

			Convey("Then a second acquire fails with ErrLocked", func() {
				_, err := l.TryAcquire(ctx)
				So(errors.Is(err, lock.ErrLocked), ShouldBeTrue)
			})

			Convey("Then it can be acquired again after release", func() {
				So(release(ctx), ShouldBeNil)
				So(release(ctx), ShouldBeNil)
				again, err := l.TryAcquire(ctx)
				So(err, ShouldBeNil)
				So(again(ctx), ShouldBeNil)
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := l.TryAcquire(cctx)

			Convey("Then the context error is returned", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}

// TestRedis requires a running redis. It is skipped when none answers.
func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DialTimeout: 200 * time.Millisecond})
	defer client.Close()
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skip("Skipping redis lock test: redis not available")
	}

	Convey("Given a redis lock on a fresh key", t, func() {
		ctx := context.Background()
		key := "patternwatch:test:" + uuid.NewString()
		a := lock.NewRedis(client, lock.WithKey(key), lock.WithTTL(time.Second))
		b := lock.NewRedis(client, lock.WithKey(key), lock.WithTTL(time.Second))
		defer client.Del(ctx, key)

		Convey("When one locker holds it", func() {
			release, err := a.TryAcquire(ctx)
			So(err, ShouldBeNil)

			Convey("Then the other gets ErrLocked", func() {
				_, err := b.TryAcquire(ctx)
				So(errors.Is(err, lock.ErrLocked), ShouldBeTrue)
			})

			Convey("Then release frees it for the other", func() {
				So(release(ctx), ShouldBeNil)
				rb, err := b.TryAcquire(ctx)
				So(err, ShouldBeNil)
				So(rb(ctx), ShouldBeNil)
			})

			Convey("Then an expired lease cannot release the next holder", func() {
				time.Sleep(1100 * time.Millisecond)
				rb, err := b.TryAcquire(ctx)
				So(err, ShouldBeNil)
				So(errors.Is(release(ctx), lock.ErrNotHeld), ShouldBeTrue)
				So(rb(ctx), ShouldBeNil)
			})
		})
	})
}
