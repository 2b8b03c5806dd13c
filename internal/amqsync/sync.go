package amqsync

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// Syncer runs one delta sync against the catalog API.
type Syncer struct {
	API       string // catalog base URL
	Token     string // admin bearer token for the import route
	MasterURL string
	StatePath string
	TargetRPS float64
	Jitter    bool
	Client    *http.Client
	Log       *log.Logger
}

// Counters classifies import responses. 404 and 409 are expected when
// AniSongDB does not know a song or the usage already exists.
type Counters struct {
	OK   int
	Skip int
	Err  int
}

func classify(status int, c *Counters) {
	switch {
	case status >= 200 && status < 300:
		c.OK++
	case status == http.StatusNotFound || status == http.StatusConflict:
		c.Skip++
	default:
		c.Err++
	}
}

func fmtETA(seconds float64) string {
	if seconds <= 0 || math.IsInf(seconds, 1) || math.IsNaN(seconds) {
		return "--:--:--"
	}
	d := time.Duration(seconds) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Run fetches the master list, imports the ids added since the last run and
// persists the new state. Import failures are counted, not fatal; a failed
// id is retried only on the next master list change.
func (s *Syncer) Run(ctx context.Context) error {
	if s.Client == nil {
		s.Client = &http.Client{Timeout: 60 * time.Second}
	}
	if s.MasterURL == "" {
		s.MasterURL = DefaultMasterURL
	}
	if s.TargetRPS <= 0 {
		s.TargetRPS = 0.5
	}

	st, err := LoadState(s.StatePath)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	ml, etag, lastModified, notModified, err := FetchMasterList(ctx, s.Client, s.MasterURL, st.ETag, st.LastModified)
	if err != nil {
		return fmt.Errorf("fetch master list: %w", err)
	}
	if notModified {
		s.Log.Info("no changes (304 not modified)")
		return nil
	}

	masterID, newIDs := Extract(*ml)
	toAdd := Delta(st.AMQIDs, newIDs)

	oldMaster := st.MasterListID
	if oldMaster == "" {
		oldMaster = "(none)"
	}
	s.Log.Info("master list changed", "from", oldMaster, "to", masterID, "new_songs", len(toAdd))

	if len(toAdd) > 0 {
		counters := s.importIDs(ctx, toAdd)
		s.Log.Info("import finished", "ok", counters.OK, "skip", counters.Skip, "err", counters.Err)
	}

	newState := State{
		MasterListID: masterID,
		AMQIDs:       newIDs,
		ETag:         etag,
		LastModified: lastModified,
		UpdatedAt:    time.Now().Unix(),
	}
	if err := SaveState(s.StatePath, newState); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	s.Log.Info("sync complete", "state", s.StatePath)
	return nil
}

func (s *Syncer) importIDs(ctx context.Context, ids []int) Counters {
	base := strings.TrimRight(s.API, "/")
	limiter := rate.NewLimiter(rate.Limit(s.TargetRPS), 1)
	interval := time.Duration(float64(time.Second) / s.TargetRPS)

	var counters Counters
	total := len(ids)
	start := time.Now()
	lastLog := start

	for i, id := range ids {
		if err := limiter.Wait(ctx); err != nil {
			s.Log.Warn("import interrupted", "done", i, "total", total, "err", err)
			return counters
		}
		if s.Jitter {
			// avoid a strict request cadence
			time.Sleep(time.Duration(rand.Float64() * 0.2 * float64(interval)))
		}

		status, err := s.postImport(ctx, base, id)
		if err != nil {
			counters.Err++
		} else {
			classify(status, &counters)
		}

		now := time.Now()
		if now.Sub(lastLog) >= 2*time.Second || i+1 == total {
			elapsed := now.Sub(start).Seconds()
			avgRPS := float64(i+1) / math.Max(elapsed, 1e-6)
			eta := fmtETA(float64(total-i-1) / math.Max(avgRPS, 1e-6))
			s.Log.Info("importing",
				"done", i+1, "total", total,
				"ok", counters.OK, "skip", counters.Skip, "err", counters.Err,
				"avg_rps", fmt.Sprintf("%.2f", avgRPS), "eta", eta)
			lastLog = now
		}
	}
	return counters
}

func (s *Syncer) postImport(ctx context.Context, base string, amqSongID int) (int, error) {
	url := fmt.Sprintf("%s/api/anime/import/by-amq-song/%d", base, amqSongID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return 0, err
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
