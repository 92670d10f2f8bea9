package health

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/notifyd/notifyd/internal/kvstore"
)

// Pinger is anything with a cheap liveness round trip, such as *store.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingProbe probes a dependency through its Ping method.
func PingProbe(p Pinger) Probe {
	return func(ctx context.Context) error {
		if p == nil {
			return ConnectivityError(fmt.Errorf("dependency not configured"))
		}
		if err := p.Ping(ctx); err != nil {
			if KindOf(err) == KindConnectivity {
				return ConnectivityError(err)
			}
			return UnexpectedError(err)
		}
		return nil
	}
}

// KVProbeKeyPrefix namespaces the synthetic keys written by KVProbe.
const KVProbeKeyPrefix = "health:probe:"

// KVProbe writes a short-lived synthetic key and reads it back. Stores that
// implement kvstore.Pinger are pinged first.
func KVProbe(s kvstore.Store) Probe {
	key := KVProbeKeyPrefix + uuid.NewString()

	return func(ctx context.Context) error {
		if s == nil {
			return ConnectivityError(fmt.Errorf("cache not configured"))
		}

		if p, ok := s.(kvstore.Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				return classify(err)
			}
		}

		want := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
		if err := s.Set(ctx, key, want, 10*time.Second); err != nil {
			return classify(err)
		}

		got, found, err := s.Get(ctx, key)
		if err != nil {
			return classify(err)
		}
		if !found || !bytes.Equal(got, want) {
			return UnexpectedError(fmt.Errorf("cache read-back mismatch for %s", key))
		}
		return nil
	}
}

func classify(err error) error {
	if KindOf(err) == KindConnectivity {
		return ConnectivityError(err)
	}
	return UnexpectedError(err)
}
