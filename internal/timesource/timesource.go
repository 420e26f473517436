// Package timesource provides the true-time clock click instants are read
// from. The drift computation trusts it completely.
package timesource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/beevik/ntp"
	"golang.org/x/sync/errgroup"
)

// ErrNoTimeSource is returned when no NTP server gave a usable answer.
var ErrNoTimeSource = errors.New("no usable NTP server")

// Source returns the current true time.
type Source interface {
	Now() time.Time
	// At converts a reading of the local clock to true time.
	At(local time.Time) time.Time
}

// System trusts the local clock as-is.
type System struct{}

func (System) Now() time.Time { return time.Now() }
func (System) At(t time.Time) time.Time { return t }

// Fixed always returns the same instant.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }
func (f Fixed) At(time.Time) time.Time { return time.Time(f) }

// Sample is the answer of one NTP server.
type Sample struct {
	Server  string
	Offset  time.Duration
	RTT     time.Duration
	Stratum uint8
	Err     error
}

// query is replaced in tests.
var query = func(server string, timeout time.Duration) (*ntp.Response, error) {
	return ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: timeout})
}

// Query asks every server concurrently. It always returns one sample per
// server, in input order; failed servers carry Err.
func Query(ctx context.Context, servers []string, timeout time.Duration) []Sample {
	samples := make([]Sample, len(servers))
	g, ctx := errgroup.WithContext(ctx)
	for i, server := range servers {
		g.Go(func() error {
			samples[i] = querySample(ctx, server, timeout)
			return nil
		})
	}
	_ = g.Wait()
	return samples
}

func querySample(ctx context.Context, server string, timeout time.Duration) Sample {
	s := Sample{Server: server}
	if err := ctx.Err(); err != nil {
		s.Err = err
		return s
	}
	resp, err := query(server, timeout)
	if err != nil {
		s.Err = err
		return s
	}
	if err := resp.Validate(); err != nil {
		s.Err = err
		return s
	}
	s.Offset = resp.ClockOffset
	s.RTT = resp.RTT
	s.Stratum = resp.Stratum
	return s
}

// Best returns the valid sample with the smallest round trip time.
func Best(samples []Sample) (Sample, error) {
	var ok []Sample
	var errs []error
	for _, s := range samples {
		if s.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Server, s.Err))
			continue
		}
		ok = append(ok, s)
	}
	if len(ok) == 0 {
		if len(errs) == 0 {
			return Sample{}, fmt.Errorf("%w: no servers configured", ErrNoTimeSource)
		}
		return Sample{}, fmt.Errorf("%w: %w", ErrNoTimeSource, errors.Join(errs...))
	}
	sort.SliceStable(ok, func(i, j int) bool { return ok[i].RTT < ok[j].RTT })
	return ok[0], nil
}

// NTP is the local clock corrected by an offset measured once against an
// NTP server.
type NTP struct {
	Sample Sample
	local  func() time.Time
}

// Calibrate queries the servers and keeps the best answer.
func Calibrate(ctx context.Context, servers []string, timeout time.Duration) (*NTP, error) {
	best, err := Best(Query(ctx, servers, timeout))
	if err != nil {
		return nil, err
	}
	return &NTP{Sample: best, local: time.Now}, nil
}

func (n *NTP) Now() time.Time {
	return n.At(n.local())
}

func (n *NTP) At(local time.Time) time.Time {
	return local.Add(n.Sample.Offset)
}
